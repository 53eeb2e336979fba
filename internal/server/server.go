package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/fusae/sentinel/internal/feedback"
	"github.com/fusae/sentinel/internal/llm"
	"github.com/fusae/sentinel/internal/notify"
	"github.com/fusae/sentinel/internal/store"
)

// Server is the JSON HTTP API for the dashboard: sentiment listing/search,
// aggregate stats, AI summary/insight, report generation, the admin
// suppress-keyword list, and the inbound feedback-link endpoint.
type Server struct {
	db       *store.DB
	provider llm.Provider
	feedback *feedback.Service
	mux      *http.ServeMux
	dataDir  string

	keywordsMu sync.RWMutex
	keywords   []string
}

// New builds a Server wired to a store, an optional LLM provider (nil is
// valid: AI endpoints fall back to a deterministic non-LLM summary), the
// feedback verification service, the configured admin suppress-keyword
// list, and the directory generated reports are written to.
func New(db *store.DB, provider llm.Provider, signer *notify.LinkSigner, initialKeywords []string, dataDir string) *Server {
	s := &Server{
		db:       db,
		provider: provider,
		feedback: feedback.New(db, signer),
		mux:      http.NewServeMux(),
		dataDir:  dataDir,
		keywords: append([]string(nil), initialKeywords...),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SuppressKeywords returns a snapshot of the current admin suppress-keyword
// list, suitable as the live accessor a classify.Classifier consults.
func (s *Server) SuppressKeywords() []string {
	s.keywordsMu.RLock()
	defer s.keywordsMu.RUnlock()
	return append([]string(nil), s.keywords...)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/opinions", s.handleOpinions)
	s.mux.HandleFunc("/api/opinions/", s.handleOpinionByID)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/stats/trend", s.handleStatsTrend)
	s.mux.HandleFunc("/api/ai/summary", s.handleAISummary)
	s.mux.HandleFunc("/api/ai/insight", s.handleAIInsight)
	s.mux.HandleFunc("/api/notification/suppress_keywords", s.handleSuppressKeywords)
	s.mux.HandleFunc("/api/report/generate", s.handleReportGenerate)
	s.mux.HandleFunc("/api/report/download/", s.handleReportDownload)
	s.mux.HandleFunc("/api/feedback", s.handleFeedback)
}

// ListenAndServe starts the HTTP server on the given port and blocks until
// ctx is cancelled, at which point it drains in-flight requests and returns.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on http://%s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Serve builds a Server and runs it until ctx is cancelled.
func Serve(ctx context.Context, db *store.DB, provider llm.Provider, signer *notify.LinkSigner, initialKeywords []string, dataDir string, port int) error {
	srv := New(db, provider, signer, initialKeywords, dataDir)
	return srv.ListenAndServe(ctx, port)
}
