package database

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool. WAL mode lets the aggregation
// pass read while a write commits; busy_timeout covers the rest.
func New(dataSourceName string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", url.PathEscape(dataSourceName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS organization_events (
		organization_id TEXT NOT NULL PRIMARY KEY,
		events_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE,
		email TEXT UNIQUE,
		organization_id TEXT NOT NULL,
		password_hash TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_log (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL,
		event_id TEXT,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_log_org_time ON sync_log (organization_id, created_at);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
