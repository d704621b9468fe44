package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webtracker/internal/contextutil"
	"webtracker/internal/embeddings"
	"webtracker/internal/storage"
	"webtracker/internal/vectorstore"
)

const reindexPageSize = 100

// ErrReindexRunning is returned when a reindex job is already in progress.
var ErrReindexRunning = errors.New("reindex already running")

// StartReindex launches Reindex in the background. The job ignores ctx's
// cancellation but keeps its values, such as the logger.
func (p *Pipeline) StartReindex(ctx context.Context) error {
	if !p.reindexing.CompareAndSwap(false, true) {
		return ErrReindexRunning
	}

	go func() {
		defer p.reindexing.Store(false)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reindexTimeout)
		defer cancel()
		_, _ = p.reindex(ctx)
	}()
	return nil
}

// Reindex re-embeds every visit in the mirror and rewrites its vector record.
// Failures of single visits are counted and logged without stopping the run.
func (p *Pipeline) Reindex(ctx context.Context) (*ReindexStats, error) {
	if !p.reindexing.CompareAndSwap(false, true) {
		return nil, ErrReindexRunning
	}
	defer p.reindexing.Store(false)
	return p.reindex(ctx)
}

// ReindexStatus reports whether a job is running and the stats of the
// current or most recent run.
func (p *Pipeline) ReindexStatus() (bool, *ReindexStats) {
	p.reindexMu.Lock()
	defer p.reindexMu.Unlock()

	if p.lastReindex == nil {
		return p.reindexing.Load(), nil
	}
	stats := *p.lastReindex
	return p.reindexing.Load(), &stats
}

func (p *Pipeline) reindex(ctx context.Context) (*ReindexStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	stats := &ReindexStats{StartedAt: p.now()}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	total, err := p.visits.Count(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reindex failed to count visits", "error", err)
		return stats, err
	}
	stats.VisitsTotal = total
	p.publish(stats)

	logger.InfoContext(ctx, "starting reindex", "workers", p.workers, "visits", total)

	var mu sync.Mutex
	count := func(f func(s *ReindexStats)) {
		mu.Lock()
		defer mu.Unlock()
		f(stats)
		p.publish(stats)
	}

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := p.visits.ListAfter(ctx, afterID, reindexPageSize)
		if err != nil {
			logger.ErrorContext(ctx, "reindex failed to list visits", "after_id", afterID, "error", err)
			return stats, err
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		var g errgroup.Group
		g.SetLimit(p.workers)
		for _, v := range page {
			g.Go(func() error {
				result := p.reindexVisit(ctx, v)
				count(func(s *ReindexStats) {
					s.VisitsProcessed++
					switch result {
					case "embedded":
						s.VisitsEmbedded++
					case "superseded":
						s.VisitsSuperseded++
					default:
						s.VisitsFailed++
					}
				})
				p.metrics.ReindexedTotal.WithLabelValues(result).Inc()
				return nil
			})
		}
		_ = g.Wait()
	}

	stats.FinishedAt = p.now()
	p.publish(stats)

	logger.InfoContext(ctx, "reindex completed",
		"processed", stats.VisitsProcessed,
		"embedded", stats.VisitsEmbedded,
		"superseded", stats.VisitsSuperseded,
		"failed", stats.VisitsFailed,
	)
	return stats, nil
}

func (p *Pipeline) publish(stats *ReindexStats) {
	p.reindexMu.Lock()
	defer p.reindexMu.Unlock()
	snapshot := *stats
	p.lastReindex = &snapshot
}

// reindexVisit rewrites the vector record of one visit and returns the
// outcome label. Under the max policy several rows may share a version; the
// row with the highest id owns the record.
func (p *Pipeline) reindexVisit(ctx context.Context, v *storage.Visit) string {
	logger := contextutil.LoggerFromContext(ctx).With("url", v.URL, "version", v.Version)

	owner, err := p.visits.GetByVersion(ctx, v.URL, v.Version)
	if err != nil {
		logger.ErrorContext(ctx, "reindex failed to resolve visit", "error", err)
		return "failed"
	}
	if owner.ID != v.ID {
		return "superseded"
	}

	vector, err := embeddings.EmbedOne(ctx, p.embedder, visitDocument(v.URL, v.Title, v.CleanedContent))
	if err != nil {
		logger.ErrorContext(ctx, "reindex failed to embed visit", "error", err)
		return "failed"
	}
	p.metrics.EmbeddedTextsTotal.Inc()

	err = p.vectors.Upsert(ctx, []vectorstore.Record{{
		ID:       vectorstore.VisitID(v.URL, v.Version),
		Vector:   vector,
		Document: v.CleanedContent,
		Metadata: vectorstore.Metadata{
			Type:        vectorstore.TypeVisit,
			URL:         v.URL,
			Title:       v.Title,
			Timestamp:   v.Timestamp.UnixMilli(),
			Version:     v.Version,
			ContentHash: v.ContentHash,
		},
	}})
	if err != nil {
		logger.ErrorContext(ctx, "reindex failed to upsert visit", "error", err)
		return "failed"
	}
	return "embedded"
}

// reindexTimeout bounds a background reindex.
const reindexTimeout = 6 * time.Hour
