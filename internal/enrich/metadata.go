// Package enrich merges the browser state captured alongside a visit with the
// normalizer output and applies the registry side effects of that state.
package enrich

import (
	"fmt"
	"math"
	"strings"

	"webtracker/internal/apperr"
)

// Metadata is the auxiliary browser state a client sends with a visit.
// Every field is optional; the zero value means "absent".
type Metadata struct {
	// IsBookmarked defaults to false.
	IsBookmarked bool `json:"isBookmarked"`
	// IdleState defaults to "".
	IdleState string `json:"idleState"`
	// Geolocation is stored as a one-to-one side row of the visit.
	Geolocation *Geolocation `json:"geolocation,omitempty"`
	// Cookies are upserted into the cookie registry keyed by (name, domain).
	Cookies []Cookie `json:"cookies,omitempty"`
	// TopSites are upserted into the top site registry keyed by url.
	TopSites []TopSite `json:"topSites,omitempty"`
	// RecentHistory entries bump the visit counter of the history record for their url.
	RecentHistory []HistoryEntry `json:"recentHistory,omitempty"`
}

// Geolocation is a latitude/longitude pair in decimal degrees.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Cookie mirrors the browser cookie object.
type Cookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value,omitempty"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path,omitempty"`
	Secure         bool     `json:"secure,omitempty"`
	HTTPOnly       bool     `json:"httpOnly,omitempty"`
	SameSite       string   `json:"sameSite,omitempty"`
	Session        bool     `json:"session,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
}

// TopSite is one entry of the browser's most visited list.
type TopSite struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// HistoryEntry is one entry of the browser's recent history.
// LastVisitTime is epoch milliseconds; browsers send it as a float.
type HistoryEntry struct {
	URL           string  `json:"url"`
	Title         string  `json:"title,omitempty"`
	LastVisitTime float64 `json:"lastVisitTime"`
}

// LastVisitMillis returns LastVisitTime truncated to whole milliseconds.
func (h HistoryEntry) LastVisitMillis() int64 {
	return int64(h.LastVisitTime)
}

// Record is the merged, validated metadata of one visit.
type Record struct {
	IsBookmarked bool
	IdleState    string
	Geolocation  *Geolocation
	Cookies      []Cookie
	TopSites     []TopSite
	History      []HistoryEntry
	Links        []string
	Images       []string
}

// Build validates meta and merges it with the normalizer's links and images.
// It performs no I/O.
func Build(meta Metadata, links, images []string) (*Record, error) {
	rec := &Record{
		IsBookmarked: meta.IsBookmarked,
		IdleState:    strings.TrimSpace(meta.IdleState),
		Links:        links,
		Images:       images,
	}

	if g := meta.Geolocation; g != nil {
		if err := validateGeolocation(*g); err != nil {
			return nil, err
		}
		rec.Geolocation = &Geolocation{Latitude: g.Latitude, Longitude: g.Longitude}
	}

	for i, c := range meta.Cookies {
		c.Name = strings.TrimSpace(c.Name)
		c.Domain = strings.TrimSpace(c.Domain)
		if c.Name == "" || c.Domain == "" {
			return nil, apperr.Validation(fmt.Sprintf("metadata.cookies[%d]", i), "name and domain are required")
		}
		rec.Cookies = append(rec.Cookies, c)
	}

	for i, s := range meta.TopSites {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			return nil, apperr.Validation(fmt.Sprintf("metadata.topSites[%d]", i), "url is required")
		}
		rec.TopSites = append(rec.TopSites, s)
	}

	for i, h := range meta.RecentHistory {
		h.URL = strings.TrimSpace(h.URL)
		field := fmt.Sprintf("metadata.recentHistory[%d]", i)
		if h.URL == "" {
			return nil, apperr.Validation(field, "url is required")
		}
		if h.LastVisitTime < 0 || math.IsNaN(h.LastVisitTime) || math.IsInf(h.LastVisitTime, 0) {
			return nil, apperr.Validation(field, "lastVisitTime must be a non-negative epoch millisecond value")
		}
		rec.History = append(rec.History, h)
	}

	return rec, nil
}

func validateGeolocation(g Geolocation) error {
	if math.IsNaN(g.Latitude) || g.Latitude < -90 || g.Latitude > 90 {
		return apperr.Validation("metadata.geolocation.latitude", "must be within [-90, 90]")
	}
	if math.IsNaN(g.Longitude) || g.Longitude < -180 || g.Longitude > 180 {
		return apperr.Validation("metadata.geolocation.longitude", "must be within [-180, 180]")
	}
	return nil
}
