package handlers

import (
	"net/http"
	"strings"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/metrics"
	"webtracker/internal/query"
	"webtracker/internal/storage"
)

// QueryHandler serves the read endpoints over the query engine.
type QueryHandler struct {
	engine   query.Engine
	websites storage.WebsiteStore
	metrics  *metrics.Metrics
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(engine query.Engine, websites storage.WebsiteStore) *QueryHandler {
	return &QueryHandler{
		engine:   engine,
		websites: websites,
		metrics:  metrics.New(),
	}
}

// LatestVersionResponse is returned by GET /latest_version.
type LatestVersionResponse struct {
	URL           string `json:"url"`
	LatestVersion int64  `json:"latest_version"`
}

// VersionsResponse is returned by GET /api/versions.
type VersionsResponse struct {
	URL    string        `json:"url"`
	Visits []query.Visit `json:"visits"`
}

// SearchResponse is returned by GET /api/search.
type SearchResponse struct {
	Query   string            `json:"query"`
	Results []query.SearchHit `json:"results"`
}

// SnapshotsResponse is returned by GET /api/snapshots.
type SnapshotsResponse struct {
	Type    string                `json:"type"`
	Entries []query.SnapshotEntry `json:"entries"`
}

// WebsiteResponse is one tracked website.
type WebsiteResponse struct {
	URL           string    `json:"url"`
	LatestVersion int64     `json:"latest_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// WebsitesResponse is returned by GET /api/websites.
type WebsitesResponse struct {
	Websites []WebsiteResponse `json:"websites"`
}

// LatestVersion returns the version counter of a url, 0 when unknown.
func (h *QueryHandler) LatestVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("latest_version").Inc()

	url := r.URL.Query().Get("url")
	latest, err := h.engine.LatestVersion(ctx, url)
	if err != nil {
		handleError(ctx, w, err, "Failed to look up latest version")
		return
	}
	writeJSON(ctx, w, http.StatusOK, LatestVersionResponse{URL: url, LatestVersion: latest})
}

// Versions returns the visits of a url with start <= version <= end.
func (h *QueryHandler) Versions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("versions").Inc()

	q := r.URL.Query()
	start, _, err := parseInt("start", q.Get("start"))
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}
	endValue, hasEnd, err := parseInt("end", q.Get("end"))
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}
	var end *int64
	if hasEnd {
		end = &endValue
	}

	visits, err := h.engine.VersionRange(ctx, q.Get("url"), start, end)
	if err != nil {
		handleError(ctx, w, err, "Failed to query versions")
		return
	}
	if visits == nil {
		visits = []query.Visit{}
	}
	writeJSON(ctx, w, http.StatusOK, VersionsResponse{URL: q.Get("url"), Visits: visits})
}

// Search ranks visits by similarity to q.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("search").Inc()

	q := r.URL.Query()
	limit, _, err := parseInt("limit", q.Get("limit"))
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}

	text := strings.TrimSpace(q.Get("q"))
	hits, err := h.engine.Search(ctx, text, int(limit))
	if err != nil {
		handleError(ctx, w, err, "Failed to search")
		return
	}
	if hits == nil {
		hits = []query.SearchHit{}
	}
	writeJSON(ctx, w, http.StatusOK, SearchResponse{Query: text, Results: hits})
}

// Snapshots returns static snapshot entries of one type in a time window.
func (h *QueryHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("snapshots").Inc()

	q := r.URL.Query()
	start, err := parseTime("start", q.Get("start"))
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}
	end, err := parseTime("end", q.Get("end"))
	if err != nil {
		handleError(ctx, w, err, "Invalid request")
		return
	}

	typ := q.Get("type")
	entries, err := h.engine.StaticRange(ctx, typ, start, end)
	if err != nil {
		handleError(ctx, w, err, "Failed to query snapshots")
		return
	}
	if entries == nil {
		entries = []query.SnapshotEntry{}
	}
	writeJSON(ctx, w, http.StatusOK, SnapshotsResponse{Type: typ, Entries: entries})
}

// Websites lists every tracked url with its version counter.
func (h *QueryHandler) Websites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.metrics.QueriesTotal.WithLabelValues("websites").Inc()

	list, err := h.websites.List(ctx)
	if err != nil {
		handleError(ctx, w, apperr.Store("list_websites", err, storage.IsBusy(err)), "Failed to list websites")
		return
	}

	resp := WebsitesResponse{Websites: make([]WebsiteResponse, 0, len(list))}
	for _, site := range list {
		resp.Websites = append(resp.Websites, WebsiteResponse{
			URL:           site.URL,
			LatestVersion: site.LatestVersion,
			CreatedAt:     site.CreatedAt,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
