package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/metrics"
	"webtracker/internal/storage"
)

// WebsiteDetailReader loads a website together with its registry state.
type WebsiteDetailReader interface {
	WebsiteDetail(ctx context.Context, url string) (*storage.WebsiteDetail, error)
}

// WebsiteHandler serves GET /api/website.
type WebsiteHandler struct {
	reader  WebsiteDetailReader
	metrics *metrics.Metrics
}

// NewWebsiteHandler creates a new WebsiteHandler.
func NewWebsiteHandler(reader WebsiteDetailReader) *WebsiteHandler {
	return &WebsiteHandler{
		reader:  reader,
		metrics: metrics.New(),
	}
}

// WebsiteDetailResponse is returned by GET /api/website.
type WebsiteDetailResponse struct {
	URL           string               `json:"url"`
	LatestVersion int64                `json:"latest_version"`
	CreatedAt     time.Time            `json:"created_at"`
	LatestVisit   *LatestVisitResponse `json:"latest_visit"`
	Geolocation   *GeolocationResponse `json:"geolocation"`
	History       *HistoryResponse     `json:"history"`
	Cookies       []CookieResponse     `json:"cookies"`
	TopSites      []TopSiteResponse    `json:"top_sites"`
}

// LatestVisitResponse summarizes the newest stored visit.
type LatestVisitResponse struct {
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
}

// GeolocationResponse is the position captured with the latest visit.
type GeolocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HistoryResponse is the browsing history record of the website url.
type HistoryResponse struct {
	Title         string    `json:"title"`
	LastVisitTime time.Time `json:"last_visit_time"`
	VisitCount    int64     `json:"visit_count"`
}

// CookieResponse is one cookie seen on the website.
type CookieResponse struct {
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	LastSeen time.Time `json:"last_seen"`
}

// TopSiteResponse is one top site recorded alongside the website.
type TopSiteResponse struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	LastSeen time.Time `json:"last_seen"`
}

// ServeHTTP handles GET /api/website?url=.
func (h *WebsiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("website").Inc()

	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		handleError(ctx, w, apperr.Validation("url", "is required"), "")
		return
	}

	d, err := h.reader.WebsiteDetail(ctx, url)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(ctx, w, http.StatusNotFound, "website not found")
		return
	}
	if err != nil {
		handleError(ctx, w, apperr.Store("website_detail", err, storage.IsBusy(err)), "failed to load website")
		return
	}

	writeJSON(ctx, w, http.StatusOK, newWebsiteDetailResponse(d))
}

func newWebsiteDetailResponse(d *storage.WebsiteDetail) WebsiteDetailResponse {
	resp := WebsiteDetailResponse{
		URL:           d.Website.URL,
		LatestVersion: d.Website.LatestVersion,
		CreatedAt:     d.Website.CreatedAt,
		Cookies:       make([]CookieResponse, 0, len(d.Cookies)),
		TopSites:      make([]TopSiteResponse, 0, len(d.TopSites)),
	}
	if v := d.LatestVisit; v != nil {
		resp.LatestVisit = &LatestVisitResponse{Version: v.Version, Timestamp: v.Timestamp, Title: v.Title}
	}
	if g := d.Geolocation; g != nil {
		resp.Geolocation = &GeolocationResponse{Latitude: g.Latitude, Longitude: g.Longitude}
	}
	if hist := d.History; hist != nil {
		resp.History = &HistoryResponse{Title: hist.Title, LastVisitTime: hist.LastVisitTime, VisitCount: hist.VisitCount}
	}
	for _, c := range d.Cookies {
		resp.Cookies = append(resp.Cookies, CookieResponse{Name: c.Name, Domain: c.Domain, Path: c.Path, LastSeen: c.LastSeen})
	}
	for _, s := range d.TopSites {
		resp.TopSites = append(resp.TopSites, TopSiteResponse{URL: s.URL, Title: s.Title, LastSeen: s.LastSeen})
	}
	return resp
}
