package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens a SQLite database connection at the given path.
// It enables WAL, foreign keys and a busy timeout and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
// Timestamps are stored as unix milliseconds.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS websites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			latest_version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			website_id INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			version INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			cleaned_content TEXT NOT NULL,
			title TEXT,
			is_bookmarked INTEGER NOT NULL DEFAULT 0,
			idle_state TEXT NOT NULL DEFAULT '',
			links TEXT NOT NULL DEFAULT '[]',
			images TEXT NOT NULL DEFAULT '[]',
			FOREIGN KEY (website_id) REFERENCES websites(id),
			UNIQUE (website_id, content_hash)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_visits_website_version ON visits (website_id, version);`,
		`CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits (timestamp);`,
		`CREATE TABLE IF NOT EXISTS geolocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visit_id INTEGER NOT NULL UNIQUE,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			FOREIGN KEY (visit_id) REFERENCES visits(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS cookies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			domain TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			raw TEXT NOT NULL DEFAULT '{}',
			last_seen INTEGER NOT NULL,
			UNIQUE (name, domain)
		);`,
		`CREATE TABLE IF NOT EXISTS website_cookies (
			website_id INTEGER NOT NULL,
			cookie_id INTEGER NOT NULL,
			PRIMARY KEY (website_id, cookie_id),
			FOREIGN KEY (website_id) REFERENCES websites(id),
			FOREIGN KEY (cookie_id) REFERENCES cookies(id)
		);`,
		`CREATE TABLE IF NOT EXISTS top_sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			last_seen INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS website_top_sites (
			website_id INTEGER NOT NULL,
			top_site_id INTEGER NOT NULL,
			PRIMARY KEY (website_id, top_site_id),
			FOREIGN KEY (website_id) REFERENCES websites(id),
			FOREIGN KEY (top_site_id) REFERENCES top_sites(id)
		);`,
		`CREATE TABLE IF NOT EXISTS browsing_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			last_visit_time INTEGER NOT NULL,
			visit_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_browsing_history_last_visit ON browsing_history (last_visit_time);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Tx groups the repositories bound to one database transaction.
type Tx struct {
	Websites *WebsiteRepo
	Visits   *VisitRepo
	Registry *RegistryRepo
}

// InTx runs fn inside a transaction. The transaction commits when fn returns nil
// and rolls back otherwise. It is never retried.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Websites: NewWebsiteRepo(sqlTx),
		Visits:   NewVisitRepo(sqlTx),
		Registry: NewRegistryRepo(sqlTx),
	}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrCreateWebsite returns the website for url, creating it lazily.
func (tx *Tx) GetOrCreateWebsite(ctx context.Context, url string) (*Website, error) {
	return tx.Websites.GetOrCreate(ctx, url)
}

// VisitExists reports whether the website already has a visit with contentHash.
func (tx *Tx) VisitExists(ctx context.Context, websiteID int64, contentHash string) (bool, error) {
	return tx.Visits.Exists(ctx, websiteID, contentHash)
}

// AdvanceLatestVersion raises latest_version of the website to version.
func (tx *Tx) AdvanceLatestVersion(ctx context.Context, websiteID int64, version int64) error {
	return tx.Websites.AdvanceLatestVersion(ctx, websiteID, version)
}

// IsBusy reports whether err is SQLite lock contention that outlasted the busy
// timeout. The operation can be retried once the other writer finishes.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
