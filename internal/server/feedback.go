package server

import (
	"net/http"
	"strconv"

	feedbacksvc "github.com/fusae/sentinel/internal/feedback"
)

// handleFeedback serves GET/POST /api/feedback?queue_id=&sentiment_id=&expires=&sig=&judgement=&type=&text=
// Both verbs are honored identically so a one-click mail-client link
// preview (a GET) works the same as an explicit form POST.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET or POST only")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid form data")
		return
	}
	q := r.Form

	queueID := q.Get("queue_id")
	sentimentID := q.Get("sentiment_id")
	sig := q.Get("sig")
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "expires must be a unix timestamp")
		return
	}
	judgement := q.Get("judgement") == "1" || q.Get("judgement") == "true"

	queueEntry, err := s.feedback.Verify(queueID, sentimentID, expires, sig)
	if err != nil {
		switch err {
		case feedbacksvc.ErrExpired, feedbacksvc.ErrInvalidSignature:
			writeError(w, http.StatusUnauthorized, "unauthorized", "expired or mismatched feedback link")
		case feedbacksvc.ErrAlreadyAnswered:
			writeError(w, http.StatusConflict, "already_answered", "this feedback link was already used")
		default:
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		}
		return
	}

	feedbackType := q.Get("type")
	text := q.Get("text")
	if err := s.feedback.Resolve(queueEntry.QueueID, queueEntry.SentimentID, judgement, feedbackType, text, queueEntry.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
}
