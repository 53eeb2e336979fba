package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

// UpsertProcessedMail records a mail token as handled. It returns false
// without error if the token was already recorded, mirroring the
// duplicate-insert-is-not-an-error idiom used across this store.
func (db *DB) UpsertProcessedMail(token, hospitalName string, emailDate time.Time) (inserted bool, err error) {
	_, err = db.conn.Exec(
		`INSERT INTO processed_mails (token, hospital_name, email_date, processed_at)
		 VALUES (?, ?, ?, ?)`,
		token, hospitalName, emailDate, time.Now(),
	)
	if err == nil {
		return true, nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		// Unique constraint race: another writer (or a prior tick) already
		// recorded this token. Treat as success for the losing writer.
		return false, nil
	}
	return false, err
}

// GetProcessedMail looks up a processed-mail row by token. The scheduler's
// poll step uses it to skip mails already recorded.
func (db *DB) GetProcessedMail(token string) (*ProcessedMail, error) {
	row := db.conn.QueryRow(
		`SELECT id, token, hospital_name, email_date, processed_at
		 FROM processed_mails WHERE token = ?`, token,
	)
	var m ProcessedMail
	if err := row.Scan(&m.ID, &m.Token, &m.HospitalName, &m.EmailDate, &m.ProcessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CountProcessedMails returns the total number of dedup rows recorded, used
// by the status command.
func (db *DB) CountProcessedMails() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM processed_mails").Scan(&n)
	return n, err
}
