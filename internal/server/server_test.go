package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fusae/sentinel/internal/notify"
	"github.com/fusae/sentinel/internal/store"
)

// openTestDB opens a MySQL database for tests, skipping when no test DSN is
// configured (see internal/store's own openTestDB for why).
func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	dsn := os.Getenv("SENTINEL_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SENTINEL_TEST_MYSQL_DSN not set; skipping server integration test")
	}
	db, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T) *Server {
	db := openTestDB(t)
	signer := notify.NewLinkSigner("https://example.com", "secret", time.Hour)
	return New(db, nil, signer, []string{"广告"}, t.TempDir())
}

func TestSuppressKeywordsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notification/suppress_keywords", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "广告") {
		t.Errorf("expected initial keyword in response, got %q", rec.Body.String())
	}

	body := strings.NewReader(`{"keywords":["招聘","广告"]}`)
	req = httptest.NewRequest(http.MethodPost, "/api/notification/suppress_keywords", body)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got := srv.SuppressKeywords()
	if len(got) != 2 || got[0] != "招聘" {
		t.Errorf("expected replaced keyword list, got %v", got)
	}
}

func TestOpinionsListFiltersByStatus(t *testing.T) {
	srv := newTestServer(t)
	db := srv.db

	if _, err := db.InsertSentiment(store.SentimentInsert{
		SentimentID: "srv-opinion-1", HospitalName: "示例医院", Title: "标题", Source: "src",
		Content: "内容", Reason: "原因", Severity: store.SeverityHigh, URL: "https://example.com/a",
	}); err != nil {
		t.Fatalf("insert sentiment: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/opinions?status=active", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "srv-opinion-1") {
		t.Errorf("expected inserted sentiment in active listing, got %q", rec.Body.String())
	}
}

func TestFeedbackEndpointRejectsBadSignature(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/feedback?queue_id=q1&sentiment_id=s1&expires=9999999999&sig=bogus", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad signature, got %d", rec.Code)
	}
}

func TestReportGenerateRejectsWordFormat(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"hospital":"示例医院","start_date":"2026-01-01","end_date":"2026-01-31","format":"word"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/report/generate", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 for format=word, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unimplemented") {
		t.Errorf("expected the stable error envelope's code, got %q", rec.Body.String())
	}
}

func TestAssembleReportEmptyRange(t *testing.T) {
	got := assembleReport("示例医院", "2026-01-01", "2026-01-31", nil)
	if !strings.Contains(got, "No opinions recorded") {
		t.Errorf("expected an explicit empty-range note, got %q", got)
	}
}

func TestSanitizeFilenamePart(t *testing.T) {
	got := sanitizeFilenamePart("示例/医院 name!")
	if strings.ContainsAny(got, "/ !") {
		t.Errorf("expected unsafe characters stripped, got %q", got)
	}
}
