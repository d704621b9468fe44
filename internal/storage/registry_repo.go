package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RegistryRepo maintains the browser state registries: geolocations, cookies,
// top sites and browsing history.
type RegistryRepo struct {
	db DBTX
}

// NewRegistryRepo creates a new RegistryRepo.
func NewRegistryRepo(db DBTX) *RegistryRepo {
	return &RegistryRepo{db: db}
}

// InsertGeolocation stores the location of a visit.
func (r *RegistryRepo) InsertGeolocation(ctx context.Context, g Geolocation) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO geolocations (visit_id, latitude, longitude) VALUES (?, ?, ?)",
		g.VisitID, g.Latitude, g.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to insert geolocation: %w", err)
	}
	return nil
}

// UpsertCookie creates the cookie keyed by (name, domain) or refreshes its
// last_seen, then links it to the website.
func (r *RegistryRepo) UpsertCookie(ctx context.Context, websiteID int64, c Cookie) error {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO cookies (name, domain, path, raw, last_seen) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name, domain) DO UPDATE SET last_seen = excluded.last_seen
		RETURNING id`,
		c.Name, c.Domain, c.Path, c.Raw, toMillis(c.LastSeen),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert cookie: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO website_cookies (website_id, cookie_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		websiteID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to link cookie: %w", err)
	}
	return nil
}

// UpsertTopSite creates the top site keyed by url or refreshes its last_seen,
// then links it to the website.
func (r *RegistryRepo) UpsertTopSite(ctx context.Context, websiteID int64, s TopSite) error {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO top_sites (url, title, last_seen) VALUES (?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET last_seen = excluded.last_seen
		RETURNING id`,
		s.URL, s.Title, toMillis(s.LastSeen),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert top site: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO website_top_sites (website_id, top_site_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		websiteID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to link top site: %w", err)
	}
	return nil
}

// RecordHistory creates the history record for the url with a count of 1, or
// increments the count of the existing record and advances last_visit_time.
func (r *RegistryRepo) RecordHistory(ctx context.Context, h HistoryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO browsing_history (url, title, last_visit_time, visit_count) VALUES (?, ?, ?, 1)
		ON CONFLICT (url) DO UPDATE SET
			visit_count = visit_count + 1,
			last_visit_time = MAX(last_visit_time, excluded.last_visit_time)`,
		h.URL, h.Title, toMillis(h.LastVisitTime),
	)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// GetGeolocation returns the location of a visit. Returns ErrNotFound if not found.
func (r *RegistryRepo) GetGeolocation(ctx context.Context, visitID int64) (*Geolocation, error) {
	g := Geolocation{VisitID: visitID}
	err := r.db.QueryRowContext(ctx,
		"SELECT latitude, longitude FROM geolocations WHERE visit_id = ?",
		visitID,
	).Scan(&g.Latitude, &g.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query geolocation: %w", err)
	}
	return &g, nil
}

// ListCookies returns the cookies linked to the website, ordered by name and domain.
func (r *RegistryRepo) ListCookies(ctx context.Context, websiteID int64) ([]Cookie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.domain, c.path, c.raw, c.last_seen
		FROM cookies c JOIN website_cookies wc ON wc.cookie_id = c.id
		WHERE wc.website_id = ?
		ORDER BY c.name, c.domain`,
		websiteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var cookies []Cookie
	for rows.Next() {
		var (
			c        Cookie
			lastSeen int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Domain, &c.Path, &c.Raw, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		c.LastSeen = fromMillis(lastSeen)
		cookies = append(cookies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cookies, nil
}

// ListTopSites returns the top sites linked to the website, ordered by url.
func (r *RegistryRepo) ListTopSites(ctx context.Context, websiteID int64) ([]TopSite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.url, t.title, t.last_seen
		FROM top_sites t JOIN website_top_sites wt ON wt.top_site_id = t.id
		WHERE wt.website_id = ?
		ORDER BY t.url`,
		websiteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top sites: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sites []TopSite
	for rows.Next() {
		var (
			s        TopSite
			lastSeen int64
		)
		if err := rows.Scan(&s.ID, &s.URL, &s.Title, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan top site: %w", err)
		}
		s.LastSeen = fromMillis(lastSeen)
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sites, nil
}

// GetHistory returns the history record for url. Returns ErrNotFound if not found.
func (r *RegistryRepo) GetHistory(ctx context.Context, url string) (*HistoryEntry, error) {
	var (
		h         HistoryEntry
		lastVisit int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, url, title, last_visit_time, visit_count FROM browsing_history WHERE url = ?",
		url,
	).Scan(&h.ID, &h.URL, &h.Title, &lastVisit, &h.VisitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	h.LastVisitTime = fromMillis(lastVisit)
	return &h, nil
}
