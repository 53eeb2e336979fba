package server

import (
	"encoding/json"
	"net/http"
)

type suppressKeywordsBody struct {
	Keywords []string `json:"keywords"`
}

// handleSuppressKeywords serves GET/POST /api/notification/suppress_keywords,
// reading or replacing the admin-managed manual suppress list — distinct
// from the compiled FeedbackRule set the classifier also consults.
func (s *Server) handleSuppressKeywords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, suppressKeywordsBody{Keywords: s.SuppressKeywords()})
	case http.MethodPost:
		var body suppressKeywordsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		s.keywordsMu.Lock()
		s.keywords = body.Keywords
		s.keywordsMu.Unlock()
		writeJSON(w, http.StatusOK, suppressKeywordsBody{Keywords: s.SuppressKeywords()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET or POST only")
	}
}
