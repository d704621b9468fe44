package vectorstore

import (
	"context"
	"testing"

	"webtracker/internal/apperr"
)

func newTestChromem(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore("", "test", 3)
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	return store
}

func visitRecord(url string, version int64, ts int64, vec []float32) Record {
	return Record{
		ID:       VisitID(url, version),
		Vector:   vec,
		Document: "content of " + url,
		Metadata: Metadata{
			Type:        TypeVisit,
			URL:         url,
			Title:       "Title",
			Timestamp:   ts,
			Version:     version,
			ContentHash: "hash-" + VisitID(url, version),
		},
	}
}

func TestNewChromemStore(t *testing.T) {
	if _, err := NewChromemStore("", "test", 0); err == nil {
		t.Error("NewChromemStore() with zero dimension should return error")
	}

	dir := t.TempDir()
	store, err := NewChromemStore(dir, "test", 3)
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	ctx := context.Background()
	if err := store.Upsert(ctx, []Record{visitRecord("https://a.test", 1, 10, []float32{1, 0, 0})}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reopened, err := NewChromemStore(dir, "test", 3)
	if err != nil {
		t.Fatalf("NewChromemStore() reopen error = %v", err)
	}
	if reopened.Count() != 1 {
		t.Errorf("Count() after reopen = %d, want 1", reopened.Count())
	}
}

func TestChromemStore_UpsertOverwrites(t *testing.T) {
	store := newTestChromem(t)
	ctx := context.Background()

	first := visitRecord("https://a.test", 1, 10, []float32{1, 0, 0})
	second := first
	second.Document = "replaced"
	second.Metadata.Title = "New title"

	if err := store.Upsert(ctx, []Record{first}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, []Record{second}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if store.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", store.Count())
	}
	got, err := store.Get(ctx, []string{first.ID})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 || got[0].Document != "replaced" || got[0].Metadata.Title != "New title" {
		t.Errorf("Get() = %+v, want overwritten record", got)
	}
}

func TestChromemStore_UpsertDimensionMismatch(t *testing.T) {
	store := newTestChromem(t)
	err := store.Upsert(context.Background(), []Record{visitRecord("https://a.test", 1, 10, []float32{1, 0})})
	if !apperr.IsKind(err, apperr.KindStore) {
		t.Errorf("Upsert() error = %v, want store error", err)
	}
	if apperr.IsTransient(err) {
		t.Error("dimension mismatch should not be transient")
	}
}

func TestChromemStore_Get(t *testing.T) {
	store := newTestChromem(t)
	ctx := context.Background()

	rec := visitRecord("https://a.test", 2, 20, []float32{0, 3, 4})
	if err := store.Upsert(ctx, []Record{rec}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, []string{rec.ID, "missing", ""})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Get() returned %d records, want 1", len(got))
	}
	g := got[0]
	if g.ID != rec.ID || g.Metadata != rec.Metadata || g.Document != rec.Document {
		t.Errorf("Get() = %+v, want %+v", g, rec)
	}
	if len(g.Vector) != 3 {
		t.Errorf("Get() vector = %v", g.Vector)
	}
}

func TestChromemStore_QueryByFilter(t *testing.T) {
	store := newTestChromem(t)
	ctx := context.Background()

	url := "https://a.test"
	records := []Record{
		visitRecord(url, 1, 100, []float32{1, 0, 0}),
		visitRecord(url, 2, 200, []float32{0, 1, 0}),
		visitRecord(url, 3, 300, []float32{0, 0, 1}),
		visitRecord(url, 5, 500, []float32{1, 1, 0}),
		visitRecord("https://b.test", 3, 150, []float32{1, 0, 1}),
		{
			ID:       SnapshotID("cookies", 250, "https://a.test", "h1"),
			Vector:   []float32{1, 1, 1},
			Document: "cookies",
			Metadata: Metadata{Type: "cookies", Timestamp: 250},
		},
	}
	if err := store.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tests := []struct {
		name    string
		filter  Filter
		limit   int
		wantIDs []string
	}{
		{
			name:    "version range is inclusive",
			filter:  Filter{URL: url, Type: TypeVisit, VersionMin: Int64(2), VersionMax: Int64(4)},
			wantIDs: []string{VisitID(url, 2), VisitID(url, 3)},
		},
		{
			name:    "open ended range",
			filter:  Filter{URL: url, VersionMin: Int64(3)},
			wantIDs: []string{VisitID(url, 3), VisitID(url, 5)},
		},
		{
			name:    "timestamp range across types",
			filter:  Filter{TimestampMin: Int64(150), TimestampMax: Int64(250)},
			wantIDs: []string{VisitID("https://b.test", 3), VisitID(url, 2), SnapshotID("cookies", 250, "https://a.test", "h1")},
		},
		{
			name:    "snapshot type",
			filter:  Filter{Type: "cookies"},
			wantIDs: []string{SnapshotID("cookies", 250, "https://a.test", "h1")},
		},
		{
			name:    "by id",
			filter:  Filter{ID: VisitID(url, 5)},
			wantIDs: []string{VisitID(url, 5)},
		},
		{
			name:    "by content hash",
			filter:  Filter{URL: url, ContentHash: "hash-" + VisitID(url, 1)},
			wantIDs: []string{VisitID(url, 1)},
		},
		{
			name:    "limit keeps earliest",
			filter:  Filter{URL: url},
			limit:   2,
			wantIDs: []string{VisitID(url, 1), VisitID(url, 2)},
		},
		{
			name:   "unknown url",
			filter: Filter{URL: "https://unknown.test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.QueryByFilter(ctx, tt.filter, tt.limit)
			if err != nil {
				t.Fatalf("QueryByFilter() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("QueryByFilter() returned %d records, want %d: %+v", len(got), len(tt.wantIDs), got)
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("QueryByFilter()[%d].ID = %q, want %q", i, got[i].ID, want)
				}
			}
		})
	}
}

func TestChromemStore_QueryByFilter_Empty(t *testing.T) {
	store := newTestChromem(t)
	got, err := store.QueryByFilter(context.Background(), Filter{}, 0)
	if err != nil {
		t.Fatalf("QueryByFilter() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("QueryByFilter() on empty store = %v", got)
	}
}

func TestChromemStore_QueryBySimilarity(t *testing.T) {
	store := newTestChromem(t)
	ctx := context.Background()

	records := []Record{
		visitRecord("https://b.test", 1, 10, []float32{1, 0, 0}),
		visitRecord("https://a.test", 1, 20, []float32{1, 0, 0}),
		visitRecord("https://c.test", 1, 30, []float32{0, 1, 0}),
		visitRecord("https://d.test", 1, 40, []float32{1, 1, 0}),
		{
			ID:       SnapshotID("history", 50, "https://a.test", "h1"),
			Vector:   []float32{1, 0, 0},
			Metadata: Metadata{Type: "history", Timestamp: 50},
			Document: "history",
		},
	}
	if err := store.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.QueryBySimilarity(ctx, []float32{2, 0, 0}, 3, Filter{Type: TypeVisit})
	if err != nil {
		t.Fatalf("QueryBySimilarity() error = %v", err)
	}

	wantIDs := []string{VisitID("https://a.test", 1), VisitID("https://b.test", 1), VisitID("https://d.test", 1)}
	if len(got) != len(wantIDs) {
		t.Fatalf("QueryBySimilarity() returned %d results, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("QueryBySimilarity()[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
	if got[0].Score < got[2].Score {
		t.Errorf("scores not descending: %v, %v", got[0].Score, got[2].Score)
	}

	if _, err := store.QueryBySimilarity(ctx, []float32{1, 0, 0}, 0, Filter{}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("QueryBySimilarity() with k=0 error = %v, want validation error", err)
	}
	if _, err := store.QueryBySimilarity(ctx, []float32{1, 0}, 1, Filter{}); !apperr.IsKind(err, apperr.KindStore) {
		t.Errorf("QueryBySimilarity() with wrong size error = %v, want store error", err)
	}
}

func TestChromemStore_Delete(t *testing.T) {
	store := newTestChromem(t)
	ctx := context.Background()

	a := visitRecord("https://a.test", 1, 10, []float32{1, 0, 0})
	b := visitRecord("https://b.test", 1, 10, []float32{0, 1, 0})
	if err := store.Upsert(ctx, []Record{a, b}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := store.Delete(ctx, []string{a.ID, "missing"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
	if err := store.Delete(ctx, nil); err != nil {
		t.Errorf("Delete(nil) error = %v", err)
	}
	if err := store.Health(ctx); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
