package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"webtracker/internal/storage"
)

// Registry receives the side effects of a visit's metadata.
// *storage.RegistryRepo implements it.
type Registry interface {
	InsertGeolocation(ctx context.Context, g storage.Geolocation) error
	UpsertCookie(ctx context.Context, websiteID int64, c storage.Cookie) error
	UpsertTopSite(ctx context.Context, websiteID int64, s storage.TopSite) error
	RecordHistory(ctx context.Context, h storage.HistoryEntry) error
}

// Apply writes the registry side effects of rec for a newly recorded visit.
// It runs inside the visit's transaction so a failure here discards the visit too.
func Apply(ctx context.Context, reg Registry, websiteID, visitID int64, rec *Record, now time.Time) error {
	if g := rec.Geolocation; g != nil {
		err := reg.InsertGeolocation(ctx, storage.Geolocation{
			VisitID:   visitID,
			Latitude:  g.Latitude,
			Longitude: g.Longitude,
		})
		if err != nil {
			return err
		}
	}

	for _, c := range rec.Cookies {
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode cookie %s: %w", c.Name, err)
		}
		err = reg.UpsertCookie(ctx, websiteID, storage.Cookie{
			Name:     c.Name,
			Domain:   c.Domain,
			Path:     c.Path,
			Raw:      string(raw),
			LastSeen: now,
		})
		if err != nil {
			return err
		}
	}

	for _, s := range rec.TopSites {
		err := reg.UpsertTopSite(ctx, websiteID, storage.TopSite{
			URL:      s.URL,
			Title:    s.Title,
			LastSeen: now,
		})
		if err != nil {
			return err
		}
	}

	for _, h := range rec.History {
		err := reg.RecordHistory(ctx, storage.HistoryEntry{
			URL:           h.URL,
			Title:         h.Title,
			LastVisitTime: time.UnixMilli(h.LastVisitMillis()),
		})
		if err != nil {
			return err
		}
	}

	return nil
}
