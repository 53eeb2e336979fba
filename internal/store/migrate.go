package store

import (
	"database/sql"
	"fmt"
	"log"
)

const schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INT NOT NULL PRIMARY KEY,
	description VARCHAR(255) NOT NULL,
	applied_at DATETIME NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// getSchemaVersion returns the highest applied migration version, or 0 if
// the tracking table does not exist yet or is empty.
func getSchemaVersion(conn *sql.DB) (int, error) {
	if _, err := conn.Exec(schemaMigrationsDDL); err != nil {
		return 0, fmt.Errorf("creating schema_migrations: %w", err)
	}

	var version sql.NullInt64
	err := conn.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

// migrate brings the database schema up to the latest version. Every
// migration's DDL is idempotent (CREATE TABLE/INDEX IF NOT EXISTS or a
// guarded equivalent), so a crash mid-migration is safe to retry.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Printf("applying migration %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, NOW())",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
