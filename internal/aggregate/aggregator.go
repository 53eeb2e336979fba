package aggregate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fusae/sentinel/internal/classify"
	"github.com/fusae/sentinel/internal/extract"
	"github.com/fusae/sentinel/internal/store"
)

// Result is the outcome of aggregating one verdict.
type Result struct {
	SentimentID string
	EventID     int64
	IsDuplicate bool
	// Notify is true when the Notifier should be invoked: a first-occurrence
	// event, or an escalation to a higher severity than the event's prior last.
	Notify bool
}

// Aggregator implements C5: it fingerprints each verdict, finds or creates
// the owning Event within the aggregation window, and inserts the Sentiment.
type Aggregator struct {
	db             *store.DB
	window         time.Duration
	trackingParams []string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an Aggregator. window is the aggregation window W (default 72h);
// trackingParams are the query parameters stripped during canonicalization.
func New(db *store.DB, window time.Duration, trackingParams []string) *Aggregator {
	return &Aggregator{
		db:             db,
		window:         window,
		trackingParams: trackingParams,
		locks:          make(map[string]*sync.Mutex),
	}
}

var severityRank = map[string]int{
	store.SeverityLow:    0,
	store.SeverityMedium: 1,
	store.SeverityHigh:   2,
}

// Aggregate runs the find-or-create-with-bump algorithm under a
// per-(hospital, fingerprint) lock. The lock serializes aggregators within
// this process only; the events table has no uniqueness constraint on
// (hospital_name, fingerprint), so aggregators in separate processes are
// not ordered against each other.
func (a *Aggregator) Aggregate(v classify.Verdict, art extract.Article) (Result, error) {
	canonicalURL := CanonicalizeURL(art.URL, a.trackingParams)
	hospital := NormalizeHospital(art.Hospital)
	fingerprint := Fingerprint(canonicalURL, hospital)

	key := fmt.Sprintf("%s\x00%d", hospital, fingerprint)
	lock := a.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	sentimentID := uuid.NewString()
	windowStart := time.Now().Add(-a.window)

	existing, err := a.db.FindOpenEvent(hospital, fingerprint, windowStart)
	if err != nil {
		return Result{}, fmt.Errorf("finding open event: %w", err)
	}

	touch := store.EventTouch{
		SentimentID: sentimentID,
		Title:       v.Title,
		Reason:      v.Reason,
		Source:      art.SourcePlatform,
		Severity:    v.Severity,
	}

	if existing == nil {
		eventID, err := a.db.CreateEvent(hospital, fingerprint, canonicalURL, touch)
		if err != nil {
			return Result{}, fmt.Errorf("creating event: %w", err)
		}
		if _, err := a.db.InsertSentiment(store.SentimentInsert{
			SentimentID:  sentimentID,
			EventID:      &eventID,
			HospitalName: hospital,
			Title:        v.Title,
			Source:       art.SourcePlatform,
			Content:      art.Body,
			Reason:       v.Reason,
			Severity:     v.Severity,
			URL:          canonicalURL,
			IsDuplicate:  false,
		}); err != nil {
			return Result{}, fmt.Errorf("inserting sentiment: %w", err)
		}
		return Result{SentimentID: sentimentID, EventID: eventID, IsDuplicate: false, Notify: true}, nil
	}

	escalated := v.Severity == store.SeverityHigh &&
		existing.LastSeverity != nil && severityRank[*existing.LastSeverity] < severityRank[store.SeverityHigh]

	if err := a.db.TouchEvent(existing.ID, touch); err != nil {
		return Result{}, fmt.Errorf("touching event: %w", err)
	}
	if _, err := a.db.InsertSentiment(store.SentimentInsert{
		SentimentID:  sentimentID,
		EventID:      &existing.ID,
		HospitalName: hospital,
		Title:        v.Title,
		Source:       art.SourcePlatform,
		Content:      art.Body,
		Reason:       v.Reason,
		Severity:     v.Severity,
		URL:          canonicalURL,
		IsDuplicate:  true,
	}); err != nil {
		return Result{}, fmt.Errorf("inserting duplicate sentiment: %w", err)
	}

	return Result{SentimentID: sentimentID, EventID: existing.ID, IsDuplicate: true, Notify: escalated}, nil
}

func (a *Aggregator) lockFor(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	return l
}
