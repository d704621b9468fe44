// Package query answers reads over the versioned visit corpus.
package query

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks webtracker/internal/query Engine

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
	"webtracker/internal/embeddings"
	"webtracker/internal/enrich"
	"webtracker/internal/storage"
	"webtracker/internal/vectorstore"
)

// Engine provides the read operations.
type Engine interface {
	// LatestVersion returns the latest version of url, or 0 when url is unknown.
	LatestVersion(ctx context.Context, url string) (int64, error)
	// VersionRange returns the visits of url with start <= version <= end, ascending
	// by version. A nil end leaves the range open.
	VersionRange(ctx context.Context, url string, start int64, end *int64) ([]Visit, error)
	// Search returns the visits most similar to text. A limit of 0 selects the default.
	Search(ctx context.Context, text string, limit int) ([]SearchHit, error)
	// StaticRange returns snapshot entries of one type within [start, end],
	// ascending by timestamp. Zero times leave that side open.
	StaticRange(ctx context.Context, snapshotType string, start, end time.Time) ([]SnapshotEntry, error)
}

type engine struct {
	websites     storage.WebsiteStore
	vectors      vectorstore.Store
	embedder     embeddings.Embedder
	defaultLimit int
}

// NewEngine creates a query engine. defaultLimit applies to searches without
// an explicit limit; values outside (0, MaxSearchLimit] fall back to DefaultSearchLimit.
func NewEngine(websites storage.WebsiteStore, vectors vectorstore.Store, embedder embeddings.Embedder, defaultLimit int) Engine {
	if defaultLimit <= 0 || defaultLimit > MaxSearchLimit {
		defaultLimit = DefaultSearchLimit
	}
	return &engine{
		websites:     websites,
		vectors:      vectors,
		embedder:     embedder,
		defaultLimit: defaultLimit,
	}
}

func (e *engine) LatestVersion(ctx context.Context, url string) (int64, error) {
	if strings.TrimSpace(url) == "" {
		return 0, apperr.Validation("url", "is required")
	}

	website, err := e.websites.GetByURL(ctx, url)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Store("latest_version", err, storage.IsBusy(err))
	}
	return website.LatestVersion, nil
}

func (e *engine) VersionRange(ctx context.Context, url string, start int64, end *int64) ([]Visit, error) {
	if strings.TrimSpace(url) == "" {
		return nil, apperr.Validation("url", "is required")
	}
	if start < 0 {
		return nil, apperr.Validation("start", "must not be negative")
	}
	if end != nil && *end < start {
		return nil, apperr.Validation("end", "must not be less than start")
	}

	records, err := e.vectors.QueryByFilter(ctx, vectorstore.Filter{
		URL:        url,
		Type:       vectorstore.TypeVisit,
		VersionMin: vectorstore.Int64(start),
		VersionMax: end,
	}, 0)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(records, func(a, b vectorstore.Record) int {
		return cmp.Compare(a.Metadata.Version, b.Metadata.Version)
	})

	visits := make([]Visit, 0, len(records))
	for _, rec := range records {
		visits = append(visits, visitFromRecord(rec))
	}
	return visits, nil
}

func (e *engine) Search(ctx context.Context, text string, limit int) ([]SearchHit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("q", "is required")
	}
	if limit < 0 {
		return nil, apperr.Validation("limit", "must not be negative")
	}
	if limit == 0 {
		limit = e.defaultLimit
	}
	limit = min(limit, MaxSearchLimit)

	vector, err := embeddings.EmbedOne(ctx, e.embedder, text)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed search text", "error", err)
		return nil, err
	}

	results, err := e.vectors.QueryBySimilarity(ctx, vector, limit, vectorstore.Filter{Type: vectorstore.TypeVisit})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{Visit: visitFromRecord(r.Record), Score: r.Score})
	}
	logger.InfoContext(ctx, "search completed", "limit", limit, "results", len(hits))
	return hits, nil
}

func (e *engine) StaticRange(ctx context.Context, snapshotType string, start, end time.Time) ([]SnapshotEntry, error) {
	t, err := enrich.ParseSnapshotType(snapshotType)
	if err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, apperr.Validation("end", "must not be before start")
	}

	filter := vectorstore.Filter{Type: string(t)}
	if !start.IsZero() {
		filter.TimestampMin = vectorstore.Int64(start.UnixMilli())
	}
	if !end.IsZero() {
		filter.TimestampMax = vectorstore.Int64(end.UnixMilli())
	}

	records, err := e.vectors.QueryByFilter(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]SnapshotEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, SnapshotEntry{
			ID:        rec.ID,
			Type:      rec.Metadata.Type,
			Timestamp: time.UnixMilli(rec.Metadata.Timestamp).UTC(),
			Document:  rec.Document,
		})
	}
	return entries, nil
}

func visitFromRecord(rec vectorstore.Record) Visit {
	return Visit{
		ID:          rec.ID,
		URL:         rec.Metadata.URL,
		Title:       rec.Metadata.Title,
		Version:     rec.Metadata.Version,
		Timestamp:   time.UnixMilli(rec.Metadata.Timestamp).UTC(),
		ContentHash: rec.Metadata.ContentHash,
		Document:    rec.Document,
	}
}
