package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/fusae/sentinel/internal/store"
)

var md = goldmark.New()

type reportGenerateRequest struct {
	Hospital  string `json:"hospital"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Format    string `json:"format"`
}

// handleReportGenerate serves POST /api/report/generate: assembles a
// Markdown report for a hospital and date range, the way the donor's
// compose.assembleBody assembles briefing sections, then renders it
// through goldmark to validate that it parses; the rendered HTML is not
// returned or stored. A `format=word` request returns a recorded-unimplemented
// response in the stable error envelope; native .docx generation is out of
// scope.
func (s *Server) handleReportGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req reportGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Format == "" {
		req.Format = "markdown"
	}
	if req.Format == "word" {
		writeError(w, http.StatusNotImplemented, "unimplemented", "format=word is not supported")
		return
	}
	if req.Format != "markdown" {
		writeError(w, http.StatusBadRequest, "bad_request", "format must be markdown or word")
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "end_date must be YYYY-MM-DD")
		return
	}
	end = end.Add(24 * time.Hour)

	sentiments, err := s.db.ListSentiments(store.SentimentFilter{Hospital: req.Hospital, Since: start})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	var inRange []store.Sentiment
	for _, sm := range sentiments {
		if sm.ProcessedAt.Before(end) {
			inRange = append(inRange, sm)
		}
	}

	markdown := assembleReport(req.Hospital, req.StartDate, req.EndDate, inRange)

	var htmlPreview bytes.Buffer
	if err := md.Convert([]byte(markdown), &htmlPreview); err != nil {
		writeError(w, http.StatusInternalServerError, "render_error", "generated report failed to parse as markdown")
		return
	}

	filename := fmt.Sprintf("report-%s-%s-%s.md", sanitizeFilenamePart(req.Hospital), req.StartDate, req.EndDate)
	if err := s.writeReportFile(filename, markdown); err != nil {
		writeError(w, http.StatusInternalServerError, "write_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":     filename,
		"opinion_count": len(inRange),
	})
}

func assembleReport(hospital, start, end string, sentiments []store.Sentiment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reputation report: %s\n\n%s to %s\n\n", hospital, start, end)

	if len(sentiments) == 0 {
		b.WriteString("No opinions recorded for this hospital and date range.\n")
		return b.String()
	}

	for _, sm := range sentiments {
		fmt.Fprintf(&b, "## %s\n\n- Severity: %s\n- Processed: %s\n", sm.Title, sm.Severity, sm.ProcessedAt.Format(time.RFC3339))
		if sm.Source != nil {
			fmt.Fprintf(&b, "- Source: %s\n", *sm.Source)
		}
		if sm.URL != nil {
			fmt.Fprintf(&b, "- [Link](%s)\n", *sm.URL)
		}
		if sm.Reason != nil {
			fmt.Fprintf(&b, "\n%s\n", *sm.Reason)
		}
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

func sanitizeFilenamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}

func (s *Server) writeReportFile(filename, content string) error {
	dir := filepath.Join(s.dataDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644)
}

// handleReportDownload serves GET /api/report/download/{filename}.
func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	filename := filepath.Base(strings.TrimPrefix(r.URL.Path, "/api/report/download/"))
	if filename == "." || filename == "/" || filename == "" || filename == ".." {
		writeError(w, http.StatusNotFound, "not_found", "missing filename")
		return
	}

	path := filepath.Join(s.dataDir, "reports", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no such report")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
