package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func TestLinkSignerVerifyRoundTrip(t *testing.T) {
	s := NewLinkSigner("https://example.com", "topsecret", time.Hour)
	q, sent, exp, sig := parseLink(t, s.Build("q1", "s1"))

	if !s.Verify(q, sent, exp, sig) {
		t.Fatal("expected a freshly built link to verify")
	}
}

func TestLinkSignerRejectsTamperedField(t *testing.T) {
	s := NewLinkSigner("https://example.com", "topsecret", time.Hour)
	q, _, exp, sig := parseLink(t, s.Build("q1", "s1"))

	if s.Verify(q, "s2", exp, sig) {
		t.Fatal("expected verification to fail when sentiment_id is tampered with")
	}
}

func TestLinkSignerRejectsExpired(t *testing.T) {
	s := NewLinkSigner("https://example.com", "topsecret", -time.Hour)
	q, sent, exp, sig := parseLink(t, s.Build("q1", "s1"))

	if s.Verify(q, sent, exp, sig) {
		t.Fatal("expected an already-expired link to fail verification")
	}
}

func TestLinkSignerRejectsWrongSecret(t *testing.T) {
	s1 := NewLinkSigner("https://example.com", "secret-one", time.Hour)
	s2 := NewLinkSigner("https://example.com", "secret-two", time.Hour)
	q, sent, exp, sig := parseLink(t, s1.Build("q1", "s1"))

	if s2.Verify(q, sent, exp, sig) {
		t.Fatal("expected verification under a different secret to fail")
	}
}

func TestPayloadMarshalsAllDocumentedFields(t *testing.T) {
	p := Payload{
		Hospital:    "示例医院",
		Title:       "标题",
		Severity:    "high",
		Source:      "微信公众号",
		Body:        "正文内容",
		Reason:      "malpractice allegation",
		URL:         "https://example.com/a",
		EventCount:  3,
		Escalated:   true,
		FeedbackURL: "https://example.com/api/feedback?...",
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}

	for _, field := range []string{"hospital", "title", "severity", "source", "body", "reason", "url", "event_total", "escalated", "feedback_url"} {
		if _, ok := m[field]; !ok {
			t.Errorf("expected field %q in the webhook payload, got %v", field, m)
		}
	}
	if m["source"] != "微信公众号" {
		t.Errorf("expected source to round-trip, got %v", m["source"])
	}
	if m["body"] != "正文内容" {
		t.Errorf("expected body to round-trip, got %v", m["body"])
	}
	if m["event_total"] != float64(3) {
		t.Errorf("expected event_total to round-trip, got %v", m["event_total"])
	}
}

func TestDispatcherSendPostsToAllWebhooks(t *testing.T) {
	received := make(chan Payload, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL, srv.URL}, time.Second, 1)
	d.Send(context.Background(), Payload{Hospital: "示例医院", Source: "src", Body: "body text"})

	for i := 0; i < 2; i++ {
		select {
		case p := <-received:
			if p.Hospital != "示例医院" || p.Source != "src" || p.Body != "body text" {
				t.Errorf("unexpected payload received: %+v", p)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for webhook post")
		}
	}
}

func parseLink(t *testing.T, link string) (queueID, sentimentID string, expires int64, sig string) {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing link: %v", err)
	}
	q := u.Query()
	exp, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parsing expires: %v", err)
	}
	return q.Get("queue_id"), q.Get("sentiment_id"), exp, q.Get("sig")
}
