package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LinkSigner builds and verifies the tamper-evident feedback URLs sent in
// notification payloads. The signature covers queue id, sentiment id, and
// expiry so a modified query string always fails verification.
type LinkSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
}

// NewLinkSigner builds a signer bound to a base URL and shared secret.
func NewLinkSigner(baseURL, secret string, ttl time.Duration) *LinkSigner {
	return &LinkSigner{baseURL: strings.TrimRight(baseURL, "/"), secret: []byte(secret), ttl: ttl}
}

// Build constructs a signed feedback URL for one queue entry.
func (s *LinkSigner) Build(queueID, sentimentID string) string {
	expiry := time.Now().Add(s.ttl).Unix()
	sig := s.sign(queueID, sentimentID, expiry)
	return fmt.Sprintf("%s/api/feedback?queue_id=%s&sentiment_id=%s&expires=%d&sig=%s",
		s.baseURL, queueID, sentimentID, expiry, sig)
}

// Verify checks a signature against queue id, sentiment id, and expiry,
// rejecting expired links (a cheap integer comparison) before computing and
// comparing the signature, so a stale link never leaks timing information
// about the secret.
func (s *LinkSigner) Verify(queueID, sentimentID string, expires int64, sig string) bool {
	if time.Now().Unix() > expires {
		return false
	}
	want := s.sign(queueID, sentimentID, expires)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

func (s *LinkSigner) sign(queueID, sentimentID string, expiry int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(queueID + "|" + sentimentID + "|" + strconv.FormatInt(expiry, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
