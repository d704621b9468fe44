package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
)

// ChromemStore implements Store with the embedded chromem-go database.
// Filter queries scan the collection in process, which suits local and
// test deployments.
type ChromemStore struct {
	// mu keeps Count and the query that depends on it consistent.
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dim        int
	scanVec    []float32
}

// NewChromemStore opens a chromem database at path, or an in-memory one when
// path is empty, and gets or creates the named collection.
func NewChromemStore(path, collection string, dim int) (*ChromemStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector size must be positive, got %d", dim)
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}

	c, err := db.GetOrCreateCollection(collection, nil, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	scanVec := make([]float32, dim)
	scanVec[0] = 1

	return &ChromemStore{
		db:         db,
		collection: c,
		dim:        dim,
		scanVec:    scanVec,
	}, nil
}

// precomputedOnly is the collection's embedding func. Records always carry
// their vectors, so chromem never needs to embed on its own.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store requires precomputed embeddings")
}

// Upsert adds or overwrites documents by id.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) != s.dim {
			return apperr.Store("upsert", fmt.Errorf("record %q has vector size %d, expected %d", rec.ID, len(rec.Vector), s.dim), false)
		}
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        rec.ID,
			Metadata:  metadataToStrings(rec),
			Embedding: slices.Clone(rec.Vector),
			Content:   rec.Document,
		})
		if err != nil {
			return apperr.Store("upsert", err, false)
		}
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "upserted documents", "collection", s.collection.Name, "count", len(records))
	return nil
}

// Get returns stored documents by id. The vectors come back normalized.
func (s *ChromemStore) Get(ctx context.Context, ids []string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			// the only other failure is an empty id, handled above
			continue
		}
		rec := recordFromStrings(doc.ID, doc.Metadata, doc.Content)
		rec.Vector = doc.Embedding
		records = append(records, rec)
	}
	return records, nil
}

// QueryByFilter scans the collection with a fixed unit vector, applies
// equality conditions in chromem and range conditions here.
func (s *ChromemStore) QueryByFilter(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.scan(ctx, s.scanVec, filter)
	if err != nil {
		return nil, apperr.Store("query_by_filter", err, false)
	}

	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, m.Record)
	}
	sortByTimestamp(records)
	return truncate(records, limit), nil
}

// QueryBySimilarity ranks every matching document, so ties are broken by id
// regardless of chromem's internal ordering.
func (s *ChromemStore) QueryBySimilarity(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 {
		return nil, apperr.Validation("k", "must be greater than 0")
	}
	if len(vector) != s.dim {
		return nil, apperr.Store("query_by_similarity", fmt.Errorf("query vector size %d, expected %d", len(vector), s.dim), false)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.scan(ctx, vector, filter)
	if err != nil {
		return nil, apperr.Store("query_by_similarity", err, false)
	}
	sortByScore(results)
	return truncate(results, k), nil
}

// scan returns every document matching filter scored against vector.
// Callers hold mu.
func (s *ChromemStore) scan(ctx context.Context, vector []float32, filter Filter) ([]Result, error) {
	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}

	var where map[string]string
	if eq := filter.equality(); len(eq) > 0 {
		where = eq
	}

	found, err := s.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(found))
	for _, r := range found {
		rec := recordFromStrings(r.ID, r.Metadata, r.Content)
		if !filter.Matches(rec) {
			continue
		}
		rec.Vector = slices.Clone(r.Embedding)
		out = append(out, Result{Record: rec, Score: r.Similarity})
	}
	return out, nil
}

// Delete removes documents by id, skipping ids that are not stored.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := s.collection.GetByID(ctx, id); err == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, nil, nil, present...); err != nil {
		return apperr.Store("delete", err, false)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "deleted documents", "collection", s.collection.Name, "count", len(present))
	return nil
}

// Health always succeeds for the embedded database.
func (s *ChromemStore) Health(context.Context) error {
	return nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToStrings(rec Record) map[string]string {
	m := rec.Metadata
	return map[string]string{
		fieldID:          rec.ID,
		fieldType:        m.Type,
		fieldURL:         m.URL,
		fieldTitle:       m.Title,
		fieldTimestamp:   strconv.FormatInt(m.Timestamp, 10),
		fieldVersion:     strconv.FormatInt(m.Version, 10),
		fieldContentHash: m.ContentHash,
	}
}

func recordFromStrings(id string, meta map[string]string, content string) Record {
	ts, _ := strconv.ParseInt(meta[fieldTimestamp], 10, 64)
	version, _ := strconv.ParseInt(meta[fieldVersion], 10, 64)
	return Record{
		ID:       id,
		Document: content,
		Metadata: Metadata{
			Type:        meta[fieldType],
			URL:         meta[fieldURL],
			Title:       meta[fieldTitle],
			Timestamp:   ts,
			Version:     version,
			ContentHash: meta[fieldContentHash],
		},
	}
}
