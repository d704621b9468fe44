// Package ingest runs the write path: normalize, enrich, dedup and version,
// embed, then persist to the relational mirror and the vector store as one unit.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
	"webtracker/internal/embeddings"
	"webtracker/internal/enrich"
	"webtracker/internal/metrics"
	"webtracker/internal/normalizer"
	"webtracker/internal/storage"
	"webtracker/internal/tracker"
	"webtracker/internal/vectorstore"
)

// Pipeline orchestrates visit ingestion into SQLite and the vector store.
type Pipeline struct {
	db         *sql.DB
	websites   *storage.WebsiteRepo
	visits     *storage.VisitRepo
	mirror     *storage.Mirror
	normalizer *normalizer.Normalizer
	tracker    *tracker.Tracker
	embedder   embeddings.Embedder
	vectors    vectorstore.Store
	metrics    *metrics.Metrics
	workers    int
	now        func() time.Time

	reindexing  atomic.Bool
	reindexMu   sync.Mutex
	lastReindex *ReindexStats
}

// NewPipeline creates a new ingestion pipeline. workers bounds the
// concurrency of reindex jobs.
func NewPipeline(
	db *sql.DB,
	norm *normalizer.Normalizer,
	trk *tracker.Tracker,
	embedder embeddings.Embedder,
	vectors vectorstore.Store,
	workers int,
) *Pipeline {
	return &Pipeline{
		db:         db,
		websites:   storage.NewWebsiteRepo(db),
		visits:     storage.NewVisitRepo(db),
		mirror:     storage.NewMirror(db),
		normalizer: norm,
		tracker:    trk,
		embedder:   embedder,
		vectors:    vectors,
		metrics:    metrics.New(),
		workers:    max(1, workers),
		now:        time.Now,
	}
}

// prepared is everything computed before the per-URL lock is taken.
type prepared struct {
	sub       Submission
	hash      string
	title     string
	text      string
	record    *enrich.Record
	snapshots []enrich.Snapshot
	vectors   [][]float32 // visit vector first, then one per snapshot
}

// Submit ingests one visit. Normalization, enrichment and embedding happen
// before any write; any failure after that leaves no visit row, no advanced
// counter and no new vector record behind.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx).With("url", sub.URL)

	res, err := p.submit(ctx, sub)
	if err != nil {
		p.metrics.VisitsTotal.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "visit submission failed", "error_kind", apperr.KindOf(err), "error", err)
		return nil, err
	}

	p.metrics.VisitsTotal.WithLabelValues(res.Outcome.String()).Inc()
	logger.InfoContext(ctx, "visit submission processed",
		"outcome", res.Outcome.String(),
		"version", res.Version,
		"content_hash", res.ContentHash,
	)
	return res, nil
}

func (p *Pipeline) submit(ctx context.Context, sub Submission) (*Result, error) {
	if err := validate(&sub); err != nil {
		return nil, err
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = p.now()
	}
	hash := sub.ContentHash
	if hash == "" {
		hash = HashContent(sub.Content)
	}

	// Cheap read-only check so resubmissions skip normalization and embedding.
	// The authoritative check runs again under the lock.
	if res, err := p.precheckDuplicate(ctx, sub.URL, hash); err != nil || res != nil {
		return res, err
	}

	prep, err := p.prepare(ctx, sub, hash)
	if err != nil {
		return nil, err
	}

	unlock, err := p.tracker.Lock(ctx, sub.URL)
	if err != nil {
		return nil, apperr.Store("lock", err, true)
	}
	defer unlock()

	start := time.Now()
	defer func() {
		p.metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())
	}()
	return p.persist(ctx, prep)
}

func validate(sub *Submission) error {
	sub.URL = strings.TrimSpace(sub.URL)
	if sub.URL == "" {
		return apperr.Validation("url", "is required")
	}
	if sub.Content == "" {
		return apperr.Validation("content", "is required")
	}
	if sub.Version < 0 {
		return apperr.Validation("version", "must not be negative")
	}
	return nil
}

// HashContent returns the hex SHA-256 of raw content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) precheckDuplicate(ctx context.Context, url, hash string) (*Result, error) {
	exists, err := p.visits.ExistsForURL(ctx, url, hash)
	if err != nil {
		return nil, apperr.Store("precheck", err, storage.IsBusy(err))
	}
	if !exists {
		return nil, nil
	}
	website, err := p.websites.GetByURL(ctx, url)
	if err != nil {
		return nil, apperr.Store("precheck", err, storage.IsBusy(err))
	}
	return &Result{Outcome: tracker.OutcomeDuplicate, Version: website.LatestVersion, ContentHash: hash}, nil
}

func (p *Pipeline) prepare(ctx context.Context, sub Submission, hash string) (*prepared, error) {
	start := time.Now()
	normalized, err := p.normalizer.Normalize(sub.Content, sub.URL)
	if err != nil {
		return nil, err
	}
	p.metrics.StageDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())

	record, err := enrich.Build(sub.Metadata, normalized.Links, normalized.Images)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(sub.Title)
	if title == "" {
		title = normalized.Title
	}

	prep := &prepared{
		sub:       sub,
		hash:      hash,
		title:     title,
		text:      normalized.Text,
		record:    record,
		snapshots: record.Snapshots(sub.Timestamp),
	}

	texts := make([]string, 0, 1+len(prep.snapshots))
	texts = append(texts, visitDocument(sub.URL, title, normalized.Text))
	for _, s := range prep.snapshots {
		texts = append(texts, s.Document)
	}

	start = time.Now()
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, apperr.Embedding("embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	p.metrics.StageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	p.metrics.EmbeddedTextsTotal.Add(float64(len(texts)))
	prep.vectors = vectors

	return prep, nil
}

// visitDocument is the text embedded for a visit.
func visitDocument(url, title, text string) string {
	parts := make([]string, 0, 2)
	if title != "" {
		parts = append(parts, title)
	}
	if text != "" {
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return url
	}
	return strings.Join(parts, "\n\n")
}

// persist writes an accepted visit. Callers hold the URL lock, so the planned
// decision stays valid while the vector store is written outside of any
// database transaction. The relational transaction that follows re-decides
// and only holds the database write lock for local statements.
func (p *Pipeline) persist(ctx context.Context, prep *prepared) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	sub := prep.sub

	planned, err := p.tracker.Plan(ctx, p.mirror, sub.URL, prep.hash, sub.Version)
	if err != nil {
		return nil, err
	}
	if planned.IsDuplicate() {
		logger.DebugContext(ctx, "duplicate content", "url", sub.URL, "content_hash", prep.hash)
		return &Result{Outcome: tracker.OutcomeDuplicate, Version: planned.Version, ContentHash: prep.hash}, nil
	}

	records := p.records(prep, planned.Version)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	prior, err := p.vectors.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := p.vectors.Upsert(ctx, records); err != nil {
		// A failed upsert may still have written some records.
		p.compensate(ctx, ids, prior)
		return nil, err
	}

	err = storage.InTx(ctx, p.db, func(tx *storage.Tx) error {
		decision, err := p.tracker.Decide(ctx, tx, sub.URL, prep.hash, sub.Version)
		if err != nil {
			return err
		}
		if !decision.Matches(planned) {
			return apperr.Store("decide", fmt.Errorf("decision changed from %s v%d to %s v%d",
				planned.Outcome, planned.Version, decision.Outcome, decision.Version), true)
		}

		visit := &storage.Visit{
			WebsiteID:      decision.WebsiteID,
			Timestamp:      sub.Timestamp,
			Version:        decision.Version,
			ContentHash:    prep.hash,
			CleanedContent: prep.text,
			Title:          prep.title,
			IsBookmarked:   prep.record.IsBookmarked,
			IdleState:      prep.record.IdleState,
			Links:          prep.record.Links,
			Images:         prep.record.Images,
		}
		if err := tx.Visits.Insert(ctx, visit); err != nil {
			return apperr.Store("insert_visit", err, storage.IsBusy(err))
		}

		if err := enrich.Apply(ctx, tx.Registry, decision.WebsiteID, visit.ID, prep.record, p.now()); err != nil {
			if apperr.KindOf(err) != "" {
				return err
			}
			return apperr.Store("apply_metadata", err, storage.IsBusy(err))
		}
		return nil
	})
	if err != nil {
		p.compensate(ctx, ids, prior)
		if apperr.KindOf(err) == "" {
			err = apperr.Store("persist", err, storage.IsBusy(err))
		}
		return nil, err
	}

	return &Result{
		Outcome:     tracker.OutcomeNew,
		Version:     planned.Version,
		ID:          ids[0],
		ContentHash: prep.hash,
		Title:       prep.title,
		Snapshots:   len(prep.snapshots),
	}, nil
}

// records builds the vector records of a new visit: the visit itself first,
// then its static snapshots.
func (p *Pipeline) records(prep *prepared, version int64) []vectorstore.Record {
	sub := prep.sub
	ts := sub.Timestamp.UnixMilli()

	out := make([]vectorstore.Record, 0, 1+len(prep.snapshots))
	out = append(out, vectorstore.Record{
		ID:       vectorstore.VisitID(sub.URL, version),
		Vector:   prep.vectors[0],
		Document: prep.text,
		Metadata: vectorstore.Metadata{
			Type:        vectorstore.TypeVisit,
			URL:         sub.URL,
			Title:       prep.title,
			Timestamp:   ts,
			Version:     version,
			ContentHash: prep.hash,
		},
	})
	for i, s := range prep.snapshots {
		out = append(out, vectorstore.Record{
			ID:       vectorstore.SnapshotID(string(s.Type), s.Timestamp.UnixMilli(), sub.URL, prep.hash),
			Vector:   prep.vectors[i+1],
			Document: s.Document,
			Metadata: vectorstore.Metadata{
				Type:        string(s.Type),
				Timestamp:   s.Timestamp.UnixMilli(),
				ContentHash: HashContent(s.Document),
			},
		})
	}
	return out
}

// compensate removes vector records written by a failed submission and puts
// back any records those ids held before.
func (p *Pipeline) compensate(ctx context.Context, ids []string, prior []vectorstore.Record) {
	logger := contextutil.LoggerFromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := p.vectors.Delete(ctx, ids); err != nil {
		errs = append(errs, err)
	}
	if len(prior) > 0 {
		if err := p.vectors.Upsert(ctx, prior); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		p.metrics.CompensationsTotal.WithLabelValues("failed").Inc()
		logger.ErrorContext(ctx, "failed to compensate vector upsert", "ids", ids, "error", err)
		return
	}
	p.metrics.CompensationsTotal.WithLabelValues("ok").Inc()
	logger.WarnContext(ctx, "compensated vector upsert after failed write", "ids", ids, "restored", len(prior))
}
