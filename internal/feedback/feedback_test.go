package feedback

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/fusae/sentinel/internal/notify"
)

func TestVerifyRejectsBadSignature(t *testing.T) {
	signer := notify.NewLinkSigner("https://example.com", "secret", time.Hour)
	svc := New(nil, signer)

	_, err := svc.Verify("q1", "s1", time.Now().Add(time.Hour).Unix(), "not-a-real-signature")
	if err != ErrInvalidSignature {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsExpiredLink(t *testing.T) {
	signer := notify.NewLinkSigner("https://example.com", "secret", -time.Hour)
	svc := New(nil, signer)

	link := signer.Build("q1", "s1")
	_, _, expires, sig := parseLinkForTest(t, link)

	_, err := svc.Verify("q1", "s1", expires, sig)
	if err != ErrInvalidSignature {
		t.Errorf("expected an expired-and-thus-invalid signature check, got %v", err)
	}
}

func parseLinkForTest(t *testing.T, link string) (string, string, int64, string) {
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
