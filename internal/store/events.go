package store

import (
	"database/sql"
	"errors"
	"time"
)

// FindOpenEvent returns the event for (hospitalName, fingerprint) whose
// last_seen_at falls within the aggregation window, or nil if none exists.
func (db *DB) FindOpenEvent(hospitalName string, fingerprint uint64, windowStart time.Time) (*Event, error) {
	row := db.conn.QueryRow(
		`SELECT id, hospital_name, fingerprint, canonical_url, total_count,
		        last_sentiment_id, last_title, last_reason, last_source, last_severity,
		        created_at, last_seen_at
		 FROM events
		 WHERE hospital_name = ? AND fingerprint = ? AND last_seen_at >= ?
		 ORDER BY last_seen_at DESC LIMIT 1`,
		hospitalName, fingerprint, windowStart,
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// CreateEvent inserts a new, first-occurrence event.
func (db *DB) CreateEvent(hospitalName string, fingerprint uint64, canonicalURL string, e EventTouch) (int64, error) {
	now := time.Now()
	res, err := db.conn.Exec(
		`INSERT INTO events (hospital_name, fingerprint, canonical_url, total_count,
		                      last_sentiment_id, last_title, last_reason, last_source, last_severity,
		                      created_at, last_seen_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)`,
		hospitalName, fingerprint, canonicalURL,
		e.SentimentID, e.Title, e.Reason, e.Source, e.Severity,
		now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EventTouch carries the fields written whenever an event is created or bumped.
type EventTouch struct {
	SentimentID string
	Title       string
	Reason      string
	Source      string
	Severity    string
}

// TouchEvent increments total_count and refreshes the "last_*" denormalized
// fields and last_seen_at on an existing open event.
func (db *DB) TouchEvent(eventID int64, e EventTouch) error {
	_, err := db.conn.Exec(
		`UPDATE events
		 SET total_count = total_count + 1,
		     last_sentiment_id = ?, last_title = ?, last_reason = ?, last_source = ?, last_severity = ?,
		     last_seen_at = ?
		 WHERE id = ?`,
		e.SentimentID, e.Title, e.Reason, e.Source, e.Severity, time.Now(), eventID,
	)
	return err
}

// GetEvent fetches a single event by primary key.
func (db *DB) GetEvent(id int64) (*Event, error) {
	row := db.conn.QueryRow(
		`SELECT id, hospital_name, fingerprint, canonical_url, total_count,
		        last_sentiment_id, last_title, last_reason, last_source, last_severity,
		        created_at, last_seen_at
		 FROM events WHERE id = ?`, id,
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// CountEvents returns the total number of events, used by the status command.
func (db *DB) CountEvents() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

func scanEvent(row *sql.Row) (*Event, error) {
	var e Event
	if err := row.Scan(
		&e.ID, &e.HospitalName, &e.Fingerprint, &e.CanonicalURL, &e.TotalCount,
		&e.LastSentimentID, &e.LastTitle, &e.LastReason, &e.LastSource, &e.LastSeverity,
		&e.CreatedAt, &e.LastSeenAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
