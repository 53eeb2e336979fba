package store

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS processed_mails (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					token VARCHAR(191) NOT NULL,
					hospital_name VARCHAR(255) NOT NULL,
					email_date DATETIME NOT NULL,
					processed_at DATETIME NOT NULL,
					UNIQUE KEY uq_processed_mails_token (token)
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

				`CREATE TABLE IF NOT EXISTS events (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					hospital_name VARCHAR(255) NOT NULL,
					fingerprint BIGINT UNSIGNED NOT NULL,
					canonical_url VARCHAR(2048) NOT NULL,
					total_count INT NOT NULL DEFAULT 1,
					last_sentiment_id VARCHAR(64) NULL,
					last_title VARCHAR(512) NULL,
					last_reason TEXT NULL,
					last_source VARCHAR(255) NULL,
					last_severity VARCHAR(16) NULL,
					created_at DATETIME NOT NULL,
					last_seen_at DATETIME NOT NULL
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

				`CREATE TABLE IF NOT EXISTS sentiments (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					sentiment_id VARCHAR(64) NOT NULL,
					event_id BIGINT NULL,
					hospital_name VARCHAR(255) NOT NULL,
					title VARCHAR(512) NOT NULL,
					source VARCHAR(255) NULL,
					content MEDIUMTEXT NULL,
					reason TEXT NULL,
					severity VARCHAR(16) NOT NULL,
					url VARCHAR(2048) NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'active',
					is_duplicate TINYINT(1) NOT NULL DEFAULT 0,
					dismissed_at DATETIME NULL,
					insight MEDIUMTEXT NULL,
					insight_at DATETIME NULL,
					processed_at DATETIME NOT NULL,
					UNIQUE KEY uq_sentiments_sentiment_id (sentiment_id)
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

				`CREATE TABLE IF NOT EXISTS feedback (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					sentiment_id VARCHAR(64) NOT NULL,
					judgement TINYINT(1) NOT NULL,
					type VARCHAR(64) NULL,
					text TEXT NULL,
					user_id VARCHAR(128) NOT NULL,
					feedback_time DATETIME NOT NULL,
					created_at DATETIME NOT NULL
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

				`CREATE TABLE IF NOT EXISTS feedback_queue (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					queue_id VARCHAR(64) NOT NULL,
					user_id VARCHAR(128) NOT NULL,
					sentiment_id VARCHAR(64) NOT NULL,
					sent_at DATETIME NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					UNIQUE KEY uq_feedback_queue_queue_id (queue_id)
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

				`CREATE TABLE IF NOT EXISTS feedback_rules (
					id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
					pattern VARCHAR(512) NOT NULL,
					rule_type VARCHAR(16) NOT NULL,
					action VARCHAR(16) NOT NULL,
					confidence DOUBLE NOT NULL DEFAULT 1,
					enabled TINYINT(1) NOT NULL DEFAULT 1,
					source_feedback_id BIGINT NULL,
					created_at DATETIME NOT NULL
				) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			}

			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}

			indexes := []indexDef{
				{"processed_mails", "idx_processed_mails_processed_at", "(processed_at)"},
				{"events", "idx_events_hospital_fingerprint", "(hospital_name, fingerprint)"},
				{"events", "idx_events_hospital_last_seen", "(hospital_name, last_seen_at)"},
				{"events", "idx_events_url", "(canonical_url(191))"},
				{"sentiments", "idx_sentiments_status", "(status)"},
				{"sentiments", "idx_sentiments_hospital", "(hospital_name)"},
				{"sentiments", "idx_sentiments_event", "(event_id)"},
				{"sentiments", "idx_sentiments_url", "(url(191))"},
				{"feedback", "idx_feedback_sentiment", "(sentiment_id)"},
				{"feedback_queue", "idx_feedback_queue_user_status", "(user_id, status, sent_at)"},
				{"feedback_rules", "idx_feedback_rules_enabled", "(enabled)"},
			}
			for _, idx := range indexes {
				if err := ensureIndex(tx, idx); err != nil {
					return err
				}
			}

			return nil
		},
	},
}

type indexDef struct {
	table   string
	name    string
	columns string
}

// ensureIndex creates an index if it does not already exist. MySQL has no
// CREATE INDEX IF NOT EXISTS, so this checks information_schema first,
// making the DDL idempotent the way spec requires.
func ensureIndex(tx *sql.Tx, idx indexDef) error {
	var count int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM information_schema.statistics
		 WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
		idx.table, idx.name,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = tx.Exec("CREATE INDEX " + idx.name + " ON " + idx.table + " " + idx.columns)
	return err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
