package store

import (
	"os"
	"testing"
	"time"
)

// openTestDB opens a MySQL database for tests, skipping when no test DSN is
// configured. The donor uses an on-disk SQLite temp file for this purpose;
// MySQL has no equivalent single-file fixture, so a real server reachable
// via SENTINEL_TEST_MYSQL_DSN is required instead.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SENTINEL_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SENTINEL_TEST_MYSQL_DSN not set; skipping store integration test")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertProcessedMailDedup(t *testing.T) {
	db := openTestDB(t)

	inserted, err := db.UpsertProcessedMail("token-1", "示例医院", time.Now())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !inserted {
		t.Error("expected first upsert to report inserted")
	}

	inserted, err = db.UpsertProcessedMail("token-1", "示例医院", time.Now())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if inserted {
		t.Error("expected second upsert of the same token to report not-inserted")
	}
}

func TestEventFindOrCreate(t *testing.T) {
	db := openTestDB(t)

	hospital := "测试医院"
	var fingerprint uint64 = 12345

	existing, err := db.FindOpenEvent(hospital, fingerprint, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("find open event: %v", err)
	}
	if existing != nil {
		t.Fatalf("expected no existing event, got %+v", existing)
	}

	id, err := db.CreateEvent(hospital, fingerprint, "https://example.com/a", EventTouch{
		SentimentID: "s1", Title: "t", Reason: "r", Source: "weibo", Severity: SeverityHigh,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	found, err := db.FindOpenEvent(hospital, fingerprint, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("find open event after create: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("expected to find the created event, got %+v", found)
	}
	if found.TotalCount != 1 {
		t.Errorf("expected total_count 1, got %d", found.TotalCount)
	}

	if err := db.TouchEvent(id, EventTouch{SentimentID: "s2", Title: "t2", Reason: "r2", Source: "weibo", Severity: SeverityHigh}); err != nil {
		t.Fatalf("touch event: %v", err)
	}

	found, err = db.GetEvent(id)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if found.TotalCount != 2 {
		t.Errorf("expected total_count 2 after touch, got %d", found.TotalCount)
	}
}

func TestFeedbackDismissAndReverse(t *testing.T) {
	db := openTestDB(t)

	sentID, err := db.InsertSentiment(SentimentInsert{
		SentimentID: "sent-dismiss-1", HospitalName: "h", Title: "t", Source: "src",
		Content: "c", Reason: "r", Severity: SeverityMedium, URL: "https://example.com/x",
	})
	if err != nil {
		t.Fatalf("insert sentiment: %v", err)
	}
	_ = sentID

	if err := db.EnqueueFeedback("queue-1", "user-1", "sent-dismiss-1"); err != nil {
		t.Fatalf("enqueue feedback: %v", err)
	}

	if err := db.ResolveFeedback("queue-1", "sent-dismiss-1", false, "spam", "广告推广", "user-1"); err != nil {
		t.Fatalf("resolve feedback: %v", err)
	}

	got, err := db.GetSentiment("sent-dismiss-1")
	if err != nil {
		t.Fatalf("get sentiment: %v", err)
	}
	if got.Status != StatusDismissed {
		t.Errorf("expected status dismissed, got %q", got.Status)
	}
	if got.DismissedAt == nil {
		t.Error("expected dismissed_at to be set")
	}

	active, err := db.ListSentiments(SentimentFilter{Status: StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, s := range active {
		if s.SentimentID == "sent-dismiss-1" {
			t.Error("dismissed sentiment should not appear in ?status=active")
		}
	}

	all, err := db.ListSentiments(SentimentFilter{Status: "all"})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	found := false
	for _, s := range all {
		if s.SentimentID == "sent-dismiss-1" {
			found = true
		}
	}
	if !found {
		t.Error("dismissed sentiment should still appear in ?status=all")
	}
}

func TestInsertRuleIfAbsentIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	rule := FeedbackRule{Pattern: "广告推广", RuleType: RuleTypeKeyword, Action: RuleActionSuppress, Confidence: 0.8, Enabled: true}

	inserted, err := db.InsertRuleIfAbsent(rule)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Error("expected first insert to report inserted")
	}

	inserted, err = db.InsertRuleIfAbsent(rule)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("expected second identical insert to be a no-op")
	}
}
