package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks webtracker/internal/vectorstore Store

import "context"

// Store defines the vector storage operations used by ingestion and queries.
// Every operation is idempotent, so callers may retry transient failures.
type Store interface {
	// Upsert inserts or overwrites records by id.
	Upsert(ctx context.Context, records []Record) error

	// Get returns the records that exist for ids, with vectors. Missing ids are skipped.
	Get(ctx context.Context, ids []string) ([]Record, error)

	// QueryByFilter returns records matching filter ordered by timestamp, then id.
	// A limit of zero or less returns every match.
	QueryByFilter(ctx context.Context, filter Filter, limit int) ([]Record, error)

	// QueryBySimilarity returns the k records closest to vector by cosine
	// similarity, highest score first and ties broken by id.
	QueryBySimilarity(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error)

	// Delete removes records by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}
