package store

import "time"

// ProcessedMail is the dedup record of one handled email. Rows are never
// mutated after insert.
type ProcessedMail struct {
	ID           int64
	Token        string
	HospitalName string
	EmailDate    time.Time
	ProcessedAt  time.Time
}

// Event aggregates one or more Sentiments judged to describe the same
// real-world incident.
type Event struct {
	ID              int64
	HospitalName    string
	Fingerprint     uint64
	CanonicalURL    string
	TotalCount      int
	LastSentimentID *string
	LastTitle       *string
	LastReason      *string
	LastSource      *string
	LastSeverity    *string
	CreatedAt       time.Time
	LastSeenAt      time.Time
}

// Sentiment is one classified article.
type Sentiment struct {
	ID           int64
	SentimentID  string
	EventID      *int64
	HospitalName string
	Title        string
	Source       *string
	Content      *string
	Reason       *string
	Severity     string
	URL          *string
	Status       string
	IsDuplicate  bool
	DismissedAt  *time.Time
	Insight      *string
	InsightAt    *time.Time
	ProcessedAt  time.Time
}

const (
	StatusActive    = "active"
	StatusDismissed = "dismissed"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Feedback is an immutable audit-log row of one user judgement.
type Feedback struct {
	ID           int64
	SentimentID  string
	Judgement    bool
	Type         *string
	Text         *string
	UserID       string
	FeedbackTime time.Time
	CreatedAt    time.Time
}

// FeedbackQueue correlates a dispatched alert to the feedback link sent for it.
type FeedbackQueue struct {
	ID          int64
	QueueID     string
	UserID      string
	SentimentID string
	SentAt      time.Time
	Status      string
}

const (
	QueueStatusPending  = "pending"
	QueueStatusAnswered = "answered"
	QueueStatusExpired  = "expired"
)

// FeedbackRule is a compiled or manually-authored suppression directive.
type FeedbackRule struct {
	ID               int64
	Pattern          string
	RuleType         string
	Action           string
	Confidence       float64
	Enabled          bool
	SourceFeedbackID *int64
	CreatedAt        time.Time
}

const (
	RuleTypeKeyword = "keyword"
	RuleTypeRegex   = "regex"
)

const (
	RuleActionSuppress = "suppress"
	RuleActionDowngrade = "downgrade"
)

// Stats contains aggregate dashboard statistics over a time range.
type Stats struct {
	TotalSentiments  int
	ActiveSentiments int
	DismissedCount   int
	HighSeverity     int
	MediumSeverity   int
	LowSeverity      int
	TotalEvents      int
	ByHospital       map[string]int
	BySource         map[string]int
}

// TrendPoint is one bucket of the stats trend series.
type TrendPoint struct {
	Label      string
	Count      int
	AvgScore   float64
}
