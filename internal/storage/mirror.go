package storage

import (
	"context"
	"errors"
)

// Mirror reads committed state outside of any transaction. Under WAL it never
// waits on a writer.
type Mirror struct {
	websites *WebsiteRepo
	visits   *VisitRepo
	registry *RegistryRepo
}

// NewMirror creates a new Mirror.
func NewMirror(db DBTX) *Mirror {
	return &Mirror{
		websites: NewWebsiteRepo(db),
		visits:   NewVisitRepo(db),
		registry: NewRegistryRepo(db),
	}
}

// LookupWebsite returns the website for url. Returns ErrNotFound if not found.
func (m *Mirror) LookupWebsite(ctx context.Context, url string) (*Website, error) {
	return m.websites.GetByURL(ctx, url)
}

// VisitExistsForURL reports whether url already has a visit with contentHash.
func (m *Mirror) VisitExistsForURL(ctx context.Context, url, contentHash string) (bool, error) {
	return m.visits.ExistsForURL(ctx, url, contentHash)
}

// WebsiteDetail is a website with the browser state recorded alongside its visits.
type WebsiteDetail struct {
	Website     *Website
	LatestVisit *Visit
	Geolocation *Geolocation  // of LatestVisit
	History     *HistoryEntry // browsing history record of the website url
	Cookies     []Cookie
	TopSites    []TopSite
}

// WebsiteDetail loads url and its registry state. Returns ErrNotFound if the
// website is unknown. Missing optional parts are left nil.
func (m *Mirror) WebsiteDetail(ctx context.Context, url string) (*WebsiteDetail, error) {
	website, err := m.websites.GetByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	d := &WebsiteDetail{Website: website}

	d.LatestVisit, err = optional(m.visits.GetLatest(ctx, url))
	if err != nil {
		return nil, err
	}
	if d.LatestVisit != nil {
		d.Geolocation, err = optional(m.registry.GetGeolocation(ctx, d.LatestVisit.ID))
		if err != nil {
			return nil, err
		}
	}
	d.History, err = optional(m.registry.GetHistory(ctx, url))
	if err != nil {
		return nil, err
	}
	if d.Cookies, err = m.registry.ListCookies(ctx, website.ID); err != nil {
		return nil, err
	}
	if d.TopSites, err = m.registry.ListTopSites(ctx, website.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}
