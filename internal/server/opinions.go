package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fusae/sentinel/internal/store"
)

type opinionView struct {
	SentimentID string  `json:"sentiment_id"`
	Hospital    string  `json:"hospital"`
	Title       string  `json:"title"`
	Source      string  `json:"source,omitempty"`
	Content     string  `json:"content,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Severity    string  `json:"severity"`
	Score       float64 `json:"score"`
	URL         string  `json:"url,omitempty"`
	Status      string  `json:"status"`
	IsDuplicate bool    `json:"is_duplicate"`
	Insight     string  `json:"insight,omitempty"`
	ProcessedAt string  `json:"processed_at"`
}

func toOpinionView(s store.Sentiment, compact bool, preview int) opinionView {
	v := opinionView{
		SentimentID: s.SentimentID,
		Hospital:    s.HospitalName,
		Title:       s.Title,
		Severity:    s.Severity,
		Score:       severityScore(s.Severity),
		Status:      s.Status,
		IsDuplicate: s.IsDuplicate,
		ProcessedAt: s.ProcessedAt.Format(time.RFC3339),
	}
	if s.Source != nil {
		v.Source = *s.Source
	}
	if s.Reason != nil {
		v.Reason = *s.Reason
	}
	if s.URL != nil {
		v.URL = *s.URL
	}
	if s.Insight != nil {
		v.Insight = *s.Insight
	}
	if !compact && s.Content != nil {
		v.Content = *s.Content
	} else if compact && s.Content != nil {
		v.Content = previewString(*s.Content, preview)
	}
	return v
}

func previewString(s string, n int) string {
	if n <= 0 {
		n = 160
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func severityScore(severity string) float64 {
	switch severity {
	case store.SeverityHigh:
		return 0.92
	case store.SeverityMedium:
		return 0.60
	default:
		return 0.35
	}
}

// handleOpinions serves GET /api/opinions?status=&compact=&preview=
func (s *Server) handleOpinions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	q := r.URL.Query()
	filter := store.SentimentFilter{
		Status:   q.Get("status"),
		Hospital: q.Get("hospital"),
		Severity: q.Get("severity"),
		Limit:    parseIntDefault(q.Get("limit"), 100),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}

	sentiments, err := s.db.ListSentiments(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	compact := q.Get("compact") == "1" || q.Get("compact") == "true"
	preview := parseIntDefault(q.Get("preview"), 160)

	views := make([]opinionView, 0, len(sentiments))
	for _, sm := range sentiments {
		views = append(views, toOpinionView(sm, compact, preview))
	}
	writeJSON(w, http.StatusOK, map[string]any{"opinions": views})
}

// handleOpinionByID serves GET /api/opinions/{id}.
func (s *Server) handleOpinionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/opinions/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "missing sentiment id")
		return
	}

	sm, err := s.db.GetSentiment(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if sm == nil {
		writeError(w, http.StatusNotFound, "not_found", "no such opinion")
		return
	}
	writeJSON(w, http.StatusOK, toOpinionView(*sm, false, 0))
}

// handleSearch serves GET /api/search?query=&compact=&preview=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"opinions": []opinionView{}})
		return
	}

	sentiments, err := s.db.ListSentiments(store.SentimentFilter{Search: query, Limit: 100})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	compact := q.Get("compact") == "1" || q.Get("compact") == "true"
	preview := parseIntDefault(q.Get("preview"), 160)

	views := make([]opinionView, 0, len(sentiments))
	for _, sm := range sentiments {
		views = append(views, toOpinionView(sm, compact, preview))
	}
	writeJSON(w, http.StatusOK, map[string]any{"opinions": views})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
