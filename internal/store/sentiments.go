package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SentimentInsert carries the fields needed to insert one classified article.
type SentimentInsert struct {
	SentimentID  string
	EventID      *int64
	HospitalName string
	Title        string
	Source       string
	Content      string
	Reason       string
	Severity     string
	URL          string
	IsDuplicate  bool
}

// InsertSentiment inserts a newly classified article and returns its
// numeric row id.
func (db *DB) InsertSentiment(s SentimentInsert) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO sentiments (sentiment_id, event_id, hospital_name, title, source, content,
		                          reason, severity, url, status, is_duplicate, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SentimentID, s.EventID, s.HospitalName, s.Title, s.Source, s.Content,
		s.Reason, s.Severity, s.URL, StatusActive, s.IsDuplicate, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetSentimentStatus flips a sentiment's status, recording dismissed_at when
// transitioning to dismissed and clearing it when reverting to active.
func (db *DB) SetSentimentStatus(sentimentID, status string) error {
	if status == StatusDismissed {
		_, err := db.conn.Exec(
			`UPDATE sentiments SET status = ?, dismissed_at = ? WHERE sentiment_id = ?`,
			status, time.Now(), sentimentID,
		)
		return err
	}
	_, err := db.conn.Exec(
		`UPDATE sentiments SET status = ?, dismissed_at = NULL WHERE sentiment_id = ?`,
		status, sentimentID,
	)
	return err
}

// SetSentimentInsight caches a lazily-computed AI insight for later reads.
func (db *DB) SetSentimentInsight(sentimentID, insight string) error {
	_, err := db.conn.Exec(
		`UPDATE sentiments SET insight = ?, insight_at = ? WHERE sentiment_id = ?`,
		insight, time.Now(), sentimentID,
	)
	return err
}

// GetSentiment fetches one sentiment by its logical id.
func (db *DB) GetSentiment(sentimentID string) (*Sentiment, error) {
	row := db.conn.QueryRow(sentimentSelect+" WHERE sentiment_id = ?", sentimentID)
	s, err := scanSentiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// SentimentFilter narrows a ListSentiments call.
type SentimentFilter struct {
	Status   string // "active", "dismissed", "all"
	Hospital string
	Severity string
	Search   string
	Since    time.Time
	Limit    int
	Offset   int
}

const sentimentSelect = `SELECT id, sentiment_id, event_id, hospital_name, title, source, content,
	       reason, severity, url, status, is_duplicate, dismissed_at, insight, insight_at, processed_at
	FROM sentiments`

// ListSentiments returns sentiments matching the filter, most recent first.
func (db *DB) ListSentiments(f SentimentFilter) ([]Sentiment, error) {
	var clauses []string
	var args []any

	switch f.Status {
	case "", "all":
	default:
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Hospital != "" {
		clauses = append(clauses, "hospital_name = ?")
		args = append(args, f.Hospital)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR content LIKE ? OR reason LIKE ? OR hospital_name LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like, like)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "processed_at >= ?")
		args = append(args, f.Since)
	}

	query := sentimentSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY processed_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSentiments(rows)
}

// ListRecentSentimentsForEvent returns the most recent sentiments linked to
// an event, newest first.
func (db *DB) ListRecentSentimentsForEvent(eventID int64, limit int) ([]Sentiment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		sentimentSelect+" WHERE event_id = ? ORDER BY processed_at DESC LIMIT ?",
		eventID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSentiments(rows)
}

func scanSentiment(row *sql.Row) (*Sentiment, error) {
	var s Sentiment
	if err := row.Scan(
		&s.ID, &s.SentimentID, &s.EventID, &s.HospitalName, &s.Title, &s.Source, &s.Content,
		&s.Reason, &s.Severity, &s.URL, &s.Status, &s.IsDuplicate, &s.DismissedAt, &s.Insight, &s.InsightAt, &s.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSentiments(rows *sql.Rows) ([]Sentiment, error) {
	var out []Sentiment
	for rows.Next() {
		var s Sentiment
		if err := rows.Scan(
			&s.ID, &s.SentimentID, &s.EventID, &s.HospitalName, &s.Title, &s.Source, &s.Content,
			&s.Reason, &s.Severity, &s.URL, &s.Status, &s.IsDuplicate, &s.DismissedAt, &s.Insight, &s.InsightAt, &s.ProcessedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
