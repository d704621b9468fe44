package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_website_store.go -package=mocks webtracker/internal/storage WebsiteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// WebsiteStore defines the interface for website storage operations.
type WebsiteStore interface {
	// GetOrCreate returns the website for url, creating it with latest_version 0 if absent.
	GetOrCreate(ctx context.Context, url string) (*Website, error)
	// GetByURL returns the website for url. Returns ErrNotFound if not found.
	GetByURL(ctx context.Context, url string) (*Website, error)
	// AdvanceLatestVersion raises latest_version to version. Lower values are ignored.
	AdvanceLatestVersion(ctx context.Context, id int64, version int64) error
	// List returns all websites ordered by url.
	List(ctx context.Context) ([]*Website, error)
}

// WebsiteRepo provides methods for website operations.
// It implements the WebsiteStore interface.
type WebsiteRepo struct {
	db DBTX
}

// NewWebsiteRepo creates a new WebsiteRepo.
func NewWebsiteRepo(db DBTX) *WebsiteRepo {
	return &WebsiteRepo{db: db}
}

// GetOrCreate returns the website for url, creating it lazily.
func (r *WebsiteRepo) GetOrCreate(ctx context.Context, url string) (*Website, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO websites (url, latest_version, created_at) VALUES (?, 0, ?) ON CONFLICT (url) DO NOTHING",
		url, toMillis(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert website: %w", err)
	}
	return r.GetByURL(ctx, url)
}

// GetByURL returns the website for url. Returns ErrNotFound if not found.
func (r *WebsiteRepo) GetByURL(ctx context.Context, url string) (*Website, error) {
	var (
		w         Website
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, url, latest_version, created_at FROM websites WHERE url = ?",
		url,
	).Scan(&w.ID, &w.URL, &w.LatestVersion, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query website: %w", err)
	}

	w.CreatedAt = fromMillis(createdAt)
	return &w, nil
}

// AdvanceLatestVersion raises latest_version to version. The counter never decreases.
func (r *WebsiteRepo) AdvanceLatestVersion(ctx context.Context, id int64, version int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE websites SET latest_version = MAX(latest_version, ?) WHERE id = ?",
		version, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update latest version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all websites ordered by url.
func (r *WebsiteRepo) List(ctx context.Context) ([]*Website, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, url, latest_version, created_at FROM websites ORDER BY url",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query websites: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var websites []*Website
	for rows.Next() {
		var (
			w         Website
			createdAt int64
		)
		if err := rows.Scan(&w.ID, &w.URL, &w.LatestVersion, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan website: %w", err)
		}
		w.CreatedAt = fromMillis(createdAt)
		websites = append(websites, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return websites, nil
}
