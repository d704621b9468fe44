package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/storage"
	"webtracker/internal/tracker/mocks"

	"go.uber.org/mock/gomock"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return db
}

// submit runs one locked decide-and-persist cycle the way the ingestion pipeline does.
func submit(t *testing.T, tr *Tracker, db *sql.DB, url, hash string, proposed int64) Decision {
	t.Helper()
	ctx := context.Background()

	unlock, err := tr.Lock(ctx, url)
	if err != nil {
		t.Errorf("Lock() error = %v", err)
		return Decision{}
	}
	defer unlock()

	var d Decision
	err = storage.InTx(ctx, db, func(tx *storage.Tx) error {
		var err error
		d, err = tr.Decide(ctx, tx, url, hash, proposed)
		if err != nil || d.IsDuplicate() {
			return err
		}
		return tx.Visits.Insert(ctx, &storage.Visit{
			WebsiteID:   d.WebsiteID,
			Timestamp:   time.Now(),
			Version:     d.Version,
			ContentHash: hash,
		})
	})
	if err != nil {
		t.Errorf("submit(%s, %s, %d) error = %v", url, hash, proposed, err)
	}
	return d
}

func latestVersion(t *testing.T, db *sql.DB, url string) int64 {
	t.Helper()
	w, err := storage.NewWebsiteRepo(db).GetByURL(context.Background(), url)
	if err != nil {
		t.Fatalf("GetByURL() error = %v", err)
	}
	return w.LatestVersion
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicyMax},
		{in: "max", want: PolicyMax},
		{in: " Increment ", want: PolicyIncrement},
		{in: "random", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolicy_Assign(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		latest   int64
		proposed int64
		want     int64
	}{
		{name: "max takes proposal above latest", policy: PolicyMax, latest: 2, proposed: 5, want: 5},
		{name: "max keeps latest over stale proposal", policy: PolicyMax, latest: 3, proposed: 2, want: 3},
		{name: "max allows equal", policy: PolicyMax, latest: 3, proposed: 3, want: 3},
		{name: "increment bumps stale proposal", policy: PolicyIncrement, latest: 3, proposed: 2, want: 4},
		{name: "increment bumps equal proposal", policy: PolicyIncrement, latest: 3, proposed: 3, want: 4},
		{name: "increment takes larger proposal", policy: PolicyIncrement, latest: 3, proposed: 9, want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Assign(tt.latest, tt.proposed); got != tt.want {
				t.Errorf("Assign(%d, %d) = %d, want %d", tt.latest, tt.proposed, got, tt.want)
			}
		})
	}
}

func TestDecide_StaleVersionGetsMax(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)

	first := submit(t, tr, db, "a", "h1", 3)
	if first.Outcome != OutcomeNew || first.Version != 3 {
		t.Fatalf("first decision = %+v, want New(3)", first)
	}

	second := submit(t, tr, db, "a", "h2", 2)
	if second.Outcome != OutcomeNew || second.Version != 3 {
		t.Errorf("second decision = %+v, want New(3)", second)
	}
	if got := latestVersion(t, db, "a"); got != 3 {
		t.Errorf("latest_version = %d, want 3", got)
	}
}

func TestDecide_IncrementPolicyMakesVersionsUnique(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyIncrement)

	first := submit(t, tr, db, "a", "h1", 3)
	second := submit(t, tr, db, "a", "h2", 2)
	if first.Version != 3 || second.Version != 4 {
		t.Errorf("versions = %d, %d, want 3, 4", first.Version, second.Version)
	}
}

func TestDecide_Duplicate(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)

	submit(t, tr, db, "a", "h1", 1)
	submit(t, tr, db, "a", "h2", 4)

	// Same content resent with a higher proposed version.
	d := submit(t, tr, db, "a", "h1", 9)
	if !d.IsDuplicate() {
		t.Fatalf("decision = %+v, want Duplicate", d)
	}
	if d.Version != 4 {
		t.Errorf("duplicate decision version = %d, want unchanged 4", d.Version)
	}
	if got := latestVersion(t, db, "a"); got != 4 {
		t.Errorf("latest_version = %d, want 4", got)
	}

	n, err := storage.NewVisitRepo(db).Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("visit count = %d, want 2", n)
	}
}

func TestDecide_LatestVersionNeverDecreases(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)

	proposals := []int64{2, 7, 1, 7, 0, 3, 12, 5}
	var prev int64
	for i, p := range proposals {
		submit(t, tr, db, "a", fmt.Sprintf("h%d", i), p)
		got := latestVersion(t, db, "a")
		if got < prev {
			t.Fatalf("latest_version decreased from %d to %d after proposal %d", prev, got, p)
		}
		prev = got
	}
	if prev != 12 {
		t.Errorf("final latest_version = %d, want 12", prev)
	}
}

func TestDecide_ConcurrentSameURL(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submit(t, tr, db, "https://site.test/a", fmt.Sprintf("h%d", i), int64(i%7))
		}(i)
	}
	wg.Wait()

	if got := latestVersion(t, db, "https://site.test/a"); got != 6 {
		t.Errorf("latest_version = %d, want max proposed 6", got)
	}
	n, err := storage.NewVisitRepo(db).Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != writers {
		t.Errorf("visit count = %d, want %d", n, writers)
	}
	if tr.locks.held() != 0 {
		t.Errorf("lock entries left = %d, want 0", tr.locks.held())
	}
}

func TestDecide_ConcurrentSameContent(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)

	const writers = 8
	results := make([]Decision, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = submit(t, tr, db, "a", "same", 1)
		}(i)
	}
	wg.Wait()

	var news int
	for _, d := range results {
		if d.Outcome == OutcomeNew {
			news++
		}
	}
	if news != 1 {
		t.Errorf("new decisions = %d, want exactly 1", news)
	}
}

func TestDecide_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	tr := NewTracker(PolicyMax)

	if _, err := tr.Decide(context.Background(), store, "a", "h1", -1); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("Decide() negative version error = %v, want validation", err)
	}
	if _, err := tr.Decide(context.Background(), store, "a", "", 1); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("Decide() empty hash error = %v, want validation", err)
	}
}

func TestDecide_StoreErrors(t *testing.T) {
	boom := errors.New("disk I/O error")

	tests := []struct {
		name  string
		setup func(store *mocks.MockStore)
	}{
		{
			name: "website lookup fails",
			setup: func(store *mocks.MockStore) {
				store.EXPECT().GetOrCreateWebsite(gomock.Any(), "a").Return(nil, boom)
			},
		},
		{
			name: "existence check fails",
			setup: func(store *mocks.MockStore) {
				store.EXPECT().GetOrCreateWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 1, URL: "a"}, nil)
				store.EXPECT().VisitExists(gomock.Any(), int64(1), "h1").Return(false, boom)
			},
		},
		{
			name: "counter update fails",
			setup: func(store *mocks.MockStore) {
				store.EXPECT().GetOrCreateWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 1, URL: "a", LatestVersion: 2}, nil)
				store.EXPECT().VisitExists(gomock.Any(), int64(1), "h1").Return(false, nil)
				store.EXPECT().AdvanceLatestVersion(gomock.Any(), int64(1), int64(5)).Return(boom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockStore(ctrl)
			tt.setup(store)

			_, err := NewTracker(PolicyMax).Decide(context.Background(), store, "a", "h1", 5)
			if !apperr.IsKind(err, apperr.KindStore) {
				t.Errorf("Decide() error = %v, want store error", err)
			}
			if apperr.IsTransient(err) {
				t.Error("Decide() store errors must not be marked transient")
			}
			if !errors.Is(err, boom) {
				t.Errorf("Decide() error should wrap cause, got %v", err)
			}
		})
	}
}

func TestDecide_DuplicateSkipsCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().GetOrCreateWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 7, URL: "a", LatestVersion: 3}, nil)
	store.EXPECT().VisitExists(gomock.Any(), int64(7), "h1").Return(true, nil)
	// No AdvanceLatestVersion expectation: a duplicate must not touch the counter.

	d, err := NewTracker(PolicyMax).Decide(context.Background(), store, "a", "h1", 10)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if d != DecisionDuplicate(7, 3) {
		t.Errorf("Decide() = %+v, want Duplicate", d)
	}
}

func TestDecide_BusyIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().GetOrCreateWebsite(gomock.Any(), "a").Return(nil, errors.New("database is locked"))

	_, err := NewTracker(PolicyMax).Decide(context.Background(), store, "a", "h1", 1)
	if !apperr.IsKind(err, apperr.KindStore) || !apperr.IsTransient(err) {
		t.Errorf("Decide() error = %v, want transient store error", err)
	}
}

func TestPlan(t *testing.T) {
	boom := errors.New("disk I/O error")

	tests := []struct {
		name      string
		policy    Policy
		setup     func(r *mocks.MockReader)
		want      Decision
		wantErr   bool
		transient bool
	}{
		{
			name:   "unknown website",
			policy: PolicyMax,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(nil, storage.ErrNotFound)
			},
			want: DecisionNew(0, 4),
		},
		{
			name:   "unknown website with increment",
			policy: PolicyIncrement,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(nil, storage.ErrNotFound)
			},
			want: DecisionNew(0, 4),
		},
		{
			name:   "stale proposal keeps latest",
			policy: PolicyMax,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 3, LatestVersion: 6}, nil)
				r.EXPECT().VisitExistsForURL(gomock.Any(), "a", "h1").Return(false, nil)
			},
			want: DecisionNew(3, 6),
		},
		{
			name:   "stale proposal with increment",
			policy: PolicyIncrement,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 3, LatestVersion: 6}, nil)
				r.EXPECT().VisitExistsForURL(gomock.Any(), "a", "h1").Return(false, nil)
			},
			want: DecisionNew(3, 7),
		},
		{
			name:   "duplicate",
			policy: PolicyMax,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 3, LatestVersion: 6}, nil)
				r.EXPECT().VisitExistsForURL(gomock.Any(), "a", "h1").Return(true, nil)
			},
			want: DecisionDuplicate(3, 6),
		},
		{
			name:   "lookup fails",
			policy: PolicyMax,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(nil, boom)
			},
			wantErr: true,
		},
		{
			name:   "existence check busy",
			policy: PolicyMax,
			setup: func(r *mocks.MockReader) {
				r.EXPECT().LookupWebsite(gomock.Any(), "a").Return(&storage.Website{ID: 3}, nil)
				r.EXPECT().VisitExistsForURL(gomock.Any(), "a", "h1").Return(false, errors.New("database is locked (5) (SQLITE_BUSY)"))
			},
			wantErr:   true,
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			reader := mocks.NewMockReader(ctrl)
			tt.setup(reader)

			got, err := NewTracker(tt.policy).Plan(context.Background(), reader, "a", "h1", 4)
			if tt.wantErr {
				if !apperr.IsKind(err, apperr.KindStore) {
					t.Fatalf("Plan() error = %v, want store error", err)
				}
				if apperr.IsTransient(err) != tt.transient {
					t.Errorf("IsTransient() = %v, want %v", apperr.IsTransient(err), tt.transient)
				}
				return
			}
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlan_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No reader calls are expected for rejected input.
	reader := mocks.NewMockReader(ctrl)
	if _, err := NewTracker(PolicyMax).Plan(context.Background(), reader, "a", "", 1); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("Plan() empty hash error = %v, want validation", err)
	}
}

func TestPlan_MatchesDecide(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(PolicyMax)
	mirror := storage.NewMirror(db)
	ctx := context.Background()

	steps := []struct {
		hash     string
		proposed int64
	}{
		{"h1", 2}, {"h2", 1}, {"h1", 9}, {"h3", 5},
	}
	for _, step := range steps {
		planned, err := tr.Plan(ctx, mirror, "a", step.hash, step.proposed)
		if err != nil {
			t.Fatalf("Plan(%s, %d) error = %v", step.hash, step.proposed, err)
		}
		decided := submit(t, tr, db, "a", step.hash, step.proposed)
		if !planned.Matches(decided) {
			t.Errorf("Plan(%s, %d) = %+v, Decide = %+v", step.hash, step.proposed, planned, decided)
		}
	}
}

func TestDecision_Matches(t *testing.T) {
	tests := []struct {
		name string
		a, b Decision
		want bool
	}{
		{name: "website id ignored", a: DecisionNew(0, 3), b: DecisionNew(8, 3), want: true},
		{name: "version differs", a: DecisionNew(8, 3), b: DecisionNew(8, 4)},
		{name: "outcome differs", a: DecisionNew(8, 3), b: DecisionDuplicate(8, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
