package feedback

import (
	"errors"
	"fmt"

	"github.com/fusae/sentinel/internal/notify"
	"github.com/fusae/sentinel/internal/store"
)

// ErrExpired names a feedback link that has passed its expiry. Service.Verify
// does not return it: the signer rejects expired links, so they surface as
// ErrInvalidSignature.
var ErrExpired = errors.New("feedback link expired")

// ErrInvalidSignature is returned when a feedback link's signature does not
// match its fields.
var ErrInvalidSignature = errors.New("invalid feedback link signature")

// ErrAlreadyAnswered is returned when a feedback queue entry has already
// been resolved.
var ErrAlreadyAnswered = errors.New("feedback already recorded")

// Service resolves signed feedback links against stored queue entries and
// records the resulting judgement.
type Service struct {
	db     *store.DB
	signer *notify.LinkSigner
}

// New builds a feedback Service bound to a store and link signer.
func New(db *store.DB, signer *notify.LinkSigner) *Service {
	return &Service{db: db, signer: signer}
}

// Verify checks a feedback link's signature and expiry, then looks up the
// queue entry. Expiry is checked by the signer before the DB is touched.
func (s *Service) Verify(queueID, sentimentID string, expires int64, sig string) (*store.FeedbackQueue, error) {
	if !s.signer.Verify(queueID, sentimentID, expires, sig) {
		return nil, ErrInvalidSignature
	}

	q, err := s.db.GetFeedbackQueue(queueID)
	if err != nil {
		return nil, fmt.Errorf("looking up feedback queue entry: %w", err)
	}
	if q == nil {
		return nil, ErrInvalidSignature
	}
	if q.SentimentID != sentimentID {
		return nil, ErrInvalidSignature
	}
	if q.Status != store.QueueStatusPending {
		return nil, ErrAlreadyAnswered
	}
	return q, nil
}

// Resolve records a human judgement for a verified queue entry.
func (s *Service) Resolve(queueID, sentimentID string, judgement bool, feedbackType, text, userID string) error {
	return s.db.ResolveFeedback(queueID, sentimentID, judgement, feedbackType, text, userID)
}
