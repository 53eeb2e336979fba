package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// DB wraps a MySQL connection pool for the sentinel schema.
type DB struct {
	conn *sql.DB
	dsn  string
}

// Open connects to MySQL using dsn and brings the schema up to date.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, dsn: dsn}, nil
}

// SetPoolSize sizes the connection pool. Per the concurrency model the pool
// should be at least p_mail + p_url plus the API's own worker count.
func (db *DB) SetPoolSize(n int) {
	if n < 1 {
		n = 1
	}
	db.conn.SetMaxOpenConns(n)
	db.conn.SetMaxIdleConns(n)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DSN returns the connection string the store was opened with.
func (db *DB) DSN() string {
	return db.dsn
}
