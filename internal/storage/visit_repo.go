package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateContent is returned when a visit with the same content hash
// already exists for the website.
var ErrDuplicateContent = errors.New("visit with this content hash already exists")

const visitColumns = `v.id, v.website_id, w.url, v.timestamp, v.version, v.content_hash,
	v.cleaned_content, COALESCE(v.title, ''), v.is_bookmarked, v.idle_state, v.links, v.images`

// VisitRepo provides methods for visit operations.
type VisitRepo struct {
	db DBTX
}

// NewVisitRepo creates a new VisitRepo.
func NewVisitRepo(db DBTX) *VisitRepo {
	return &VisitRepo{db: db}
}

// Insert inserts a visit and sets its ID.
// Returns ErrDuplicateContent if the website already has a visit with the same hash.
func (r *VisitRepo) Insert(ctx context.Context, v *Visit) error {
	links, err := marshalList(v.Links)
	if err != nil {
		return err
	}
	images, err := marshalList(v.Images)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO visits (website_id, timestamp, version, content_hash, cleaned_content, title,
			is_bookmarked, idle_state, links, images)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.WebsiteID, toMillis(v.Timestamp), v.Version, v.ContentHash, v.CleanedContent, v.Title,
		v.IsBookmarked, v.IdleState, links, images,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateContent
		}
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	return nil
}

// Exists reports whether the website already has a visit with contentHash.
func (r *VisitRepo) Exists(ctx context.Context, websiteID int64, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM visits WHERE website_id = ? AND content_hash = ?)",
		websiteID, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check visit: %w", err)
	}
	return exists, nil
}

// ExistsForURL reports whether url already has a visit with contentHash.
// Unknown URLs report false.
func (r *VisitRepo) ExistsForURL(ctx context.Context, url, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM visits v JOIN websites w ON w.id = v.website_id
			WHERE w.url = ? AND v.content_hash = ?
		)`,
		url, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check visit: %w", err)
	}
	return exists, nil
}

// GetByVersion returns the visit of url recorded under version. When several
// visits share the version, the most recently inserted one wins.
// Returns ErrNotFound if not found.
func (r *VisitRepo) GetByVersion(ctx context.Context, url string, version int64) (*Visit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+`
		FROM visits v JOIN websites w ON w.id = v.website_id
		WHERE w.url = ? AND v.version = ?
		ORDER BY v.id DESC LIMIT 1`,
		url, version,
	)
	return scanVisit(row)
}

// GetLatest returns the visit of url with the highest version.
// Returns ErrNotFound if the url has no visits.
func (r *VisitRepo) GetLatest(ctx context.Context, url string) (*Visit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+`
		FROM visits v JOIN websites w ON w.id = v.website_id
		WHERE w.url = ?
		ORDER BY v.version DESC, v.id DESC LIMIT 1`,
		url,
	)
	return scanVisit(row)
}

// ListAfter returns up to limit visits with id greater than afterID, ordered by id.
// Used to page through the whole table.
func (r *VisitRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]*Visit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+visitColumns+`
		FROM visits v JOIN websites w ON w.id = v.website_id
		WHERE v.id > ?
		ORDER BY v.id LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return visits, nil
}

// Count returns the number of visits.
func (r *VisitRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*Visit, error) {
	var (
		v             Visit
		ts            int64
		links, images string
	)
	err := row.Scan(&v.ID, &v.WebsiteID, &v.URL, &ts, &v.Version, &v.ContentHash,
		&v.CleanedContent, &v.Title, &v.IsBookmarked, &v.IdleState, &links, &images)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan visit: %w", err)
	}

	v.Timestamp = fromMillis(ts)
	if err := json.Unmarshal([]byte(links), &v.Links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &v.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	return &v, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

// isUniqueViolation matches the constraint error text shared by both SQLite drivers.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
