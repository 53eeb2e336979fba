package store

import (
	"database/sql"
	"errors"
	"time"
)

// EnqueueFeedback records that a feedback link was sent for a sentiment,
// under the caller-supplied queue id used to correlate the eventual callback.
func (db *DB) EnqueueFeedback(queueID, userID, sentimentID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO feedback_queue (queue_id, user_id, sentiment_id, sent_at, status)
		 VALUES (?, ?, ?, ?, ?)`,
		queueID, userID, sentimentID, time.Now(), QueueStatusPending,
	)
	return err
}

// GetFeedbackQueue looks up a queued feedback request by its public id.
func (db *DB) GetFeedbackQueue(queueID string) (*FeedbackQueue, error) {
	row := db.conn.QueryRow(
		`SELECT id, queue_id, user_id, sentiment_id, sent_at, status
		 FROM feedback_queue WHERE queue_id = ?`, queueID,
	)
	var q FeedbackQueue
	if err := row.Scan(&q.ID, &q.QueueID, &q.UserID, &q.SentimentID, &q.SentAt, &q.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// ResolveFeedback records a Feedback row, flips the queue entry to answered,
// and flips the referenced sentiment's status, atomically.
func (db *DB) ResolveFeedback(queueID, sentimentID string, judgement bool, feedbackType, text, userID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(
		`INSERT INTO feedback (sentiment_id, judgement, type, text, user_id, feedback_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sentimentID, judgement, feedbackType, text, userID, now, now,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE feedback_queue SET status = ? WHERE queue_id = ?`,
		QueueStatusAnswered, queueID,
	); err != nil {
		return err
	}

	status := StatusActive
	if !judgement {
		status = StatusDismissed
	}
	if status == StatusDismissed {
		if _, err := tx.Exec(
			`UPDATE sentiments SET status = ?, dismissed_at = ? WHERE sentiment_id = ?`,
			status, now, sentimentID,
		); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(
			`UPDATE sentiments SET status = ?, dismissed_at = NULL WHERE sentiment_id = ?`,
			status, sentimentID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentFeedback returns feedback rows created within the lookback window,
// used by the rule compiler.
func (db *DB) RecentFeedback(since time.Time) ([]Feedback, error) {
	rows, err := db.conn.Query(
		`SELECT id, sentiment_id, judgement, type, text, user_id, feedback_time, created_at
		 FROM feedback WHERE created_at >= ? ORDER BY created_at ASC`, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.SentimentID, &f.Judgement, &f.Type, &f.Text, &f.UserID, &f.FeedbackTime, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// -- Feedback rules --------------------------------------------------------

// ListEnabledRules returns every currently-enabled FeedbackRule, consulted
// by the classifier's prefilter step.
func (db *DB) ListEnabledRules() ([]FeedbackRule, error) {
	rows, err := db.conn.Query(
		`SELECT id, pattern, rule_type, action, confidence, enabled, source_feedback_id, created_at
		 FROM feedback_rules WHERE enabled = 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListAllRules returns every rule, enabled or not, for the admin surface.
func (db *DB) ListAllRules() ([]FeedbackRule, error) {
	rows, err := db.conn.Query(
		`SELECT id, pattern, rule_type, action, confidence, enabled, source_feedback_id, created_at
		 FROM feedback_rules ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// InsertRuleIfAbsent inserts a compiled rule unless an identical
// (pattern, rule_type, action) rule already exists, keeping compile_rules
// idempotent. It never touches manually-authored rules.
func (db *DB) InsertRuleIfAbsent(r FeedbackRule) (inserted bool, err error) {
	var count int
	err = db.conn.QueryRow(
		`SELECT COUNT(*) FROM feedback_rules WHERE pattern = ? AND rule_type = ? AND action = ?`,
		r.Pattern, r.RuleType, r.Action,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	_, err = db.conn.Exec(
		`INSERT INTO feedback_rules (pattern, rule_type, action, confidence, enabled, source_feedback_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Pattern, r.RuleType, r.Action, r.Confidence, r.Enabled, r.SourceFeedbackID, time.Now(),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanRules(rows *sql.Rows) ([]FeedbackRule, error) {
	var out []FeedbackRule
	for rows.Next() {
		var r FeedbackRule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.RuleType, &r.Action, &r.Confidence, &r.Enabled, &r.SourceFeedbackID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountPendingFeedback returns the number of unanswered feedback-queue rows,
// used by the status command.
func (db *DB) CountPendingFeedback() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM feedback_queue WHERE status = ?`, QueueStatusPending).Scan(&n)
	return n, err
}
