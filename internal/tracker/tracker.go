// Package tracker decides whether a captured snapshot is a new version of its
// page or a duplicate, and assigns the durable per-URL version number.
package tracker

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks webtracker/internal/tracker Store,Reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webtracker/internal/apperr"
	"webtracker/internal/storage"
)

// Store is the transactional state the tracker reads and mutates.
// *storage.Tx implements it.
type Store interface {
	// GetOrCreateWebsite returns the website for url, creating it with latest_version 0.
	GetOrCreateWebsite(ctx context.Context, url string) (*storage.Website, error)
	// VisitExists reports whether the website already has a visit with contentHash.
	VisitExists(ctx context.Context, websiteID int64, contentHash string) (bool, error)
	// AdvanceLatestVersion raises latest_version of the website to version.
	AdvanceLatestVersion(ctx context.Context, websiteID int64, version int64) error
}

// Reader is the committed state Plan consults without writing.
// *storage.Mirror implements it.
type Reader interface {
	// LookupWebsite returns the website for url or storage.ErrNotFound.
	LookupWebsite(ctx context.Context, url string) (*storage.Website, error)
	// VisitExistsForURL reports whether url already has a visit with contentHash.
	VisitExistsForURL(ctx context.Context, url, contentHash string) (bool, error)
}

// Outcome is the branch a Decision took.
type Outcome int

const (
	// OutcomeNew means the content is novel and gets Decision.Version.
	OutcomeNew Outcome = iota + 1
	// OutcomeDuplicate means the website already has a visit with this content hash.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Decision is the result of Decide.
type Decision struct {
	Outcome   Outcome
	WebsiteID int64
	// Version is the assigned version for OutcomeNew and the unchanged
	// latest_version for OutcomeDuplicate.
	Version int64
}

// DecisionNew builds a Decision for novel content.
func DecisionNew(websiteID, version int64) Decision {
	return Decision{Outcome: OutcomeNew, WebsiteID: websiteID, Version: version}
}

// DecisionDuplicate builds a Decision for already recorded content.
func DecisionDuplicate(websiteID, latest int64) Decision {
	return Decision{Outcome: OutcomeDuplicate, WebsiteID: websiteID, Version: latest}
}

// IsDuplicate reports whether the decision rejected the content as a duplicate.
func (d Decision) IsDuplicate() bool {
	return d.Outcome == OutcomeDuplicate
}

// Policy chooses the version stored for novel content.
type Policy string

const (
	// PolicyMax stores max(latest, proposed). Two different contents may share a
	// version when clients send stale proposals.
	PolicyMax Policy = "max"
	// PolicyIncrement stores max(latest+1, proposed), so versions are unique per URL.
	PolicyIncrement Policy = "increment"
)

// ParsePolicy parses a policy name. The empty string selects PolicyMax.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyMax:
		return PolicyMax, nil
	case PolicyIncrement:
		return PolicyIncrement, nil
	default:
		return "", fmt.Errorf("unknown version policy %q (want %q or %q)", s, PolicyMax, PolicyIncrement)
	}
}

// Assign returns the version to store given the current counter and the
// client's proposal. The result is never below latest.
func (p Policy) Assign(latest, proposed int64) int64 {
	if p == PolicyIncrement {
		return max(latest+1, proposed)
	}
	return max(latest, proposed)
}

// Tracker serializes writers per URL and applies the version policy.
type Tracker struct {
	policy Policy
	locks  *KeyedLock
}

// NewTracker creates a Tracker with the given policy.
func NewTracker(policy Policy) *Tracker {
	if policy == "" {
		policy = PolicyMax
	}
	return &Tracker{
		policy: policy,
		locks:  NewKeyedLock(),
	}
}

// Policy returns the configured version policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Lock gives the caller exclusive write access to url until the returned
// function is called. The dedup check, version assignment and persistence of
// one submission must all happen while the lock is held.
func (t *Tracker) Lock(ctx context.Context, url string) (func(), error) {
	return t.locks.Lock(ctx, url)
}

// Plan predicts what Decide will return without writing anything. While the
// caller holds the URL lock nothing else can change the outcome, so work that
// must not run inside a database transaction can be done between Plan and
// Decide. WebsiteID is 0 for a website that does not exist yet.
func (t *Tracker) Plan(ctx context.Context, reader Reader, url, contentHash string, proposed int64) (Decision, error) {
	if err := validateInput(contentHash, proposed); err != nil {
		return Decision{}, err
	}

	var websiteID, latest int64
	website, err := reader.LookupWebsite(ctx, url)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return DecisionNew(0, t.policy.Assign(0, proposed)), nil
	case err != nil:
		return Decision{}, storeErr("lookup_website", err)
	default:
		websiteID, latest = website.ID, website.LatestVersion
	}

	exists, err := reader.VisitExistsForURL(ctx, url, contentHash)
	if err != nil {
		return Decision{}, storeErr("visit_exists", err)
	}
	if exists {
		return DecisionDuplicate(websiteID, latest), nil
	}
	return DecisionNew(websiteID, t.policy.Assign(latest, proposed)), nil
}

// Decide looks up or creates the website, rejects content it has already
// recorded and otherwise advances latest_version according to the policy.
// A duplicate performs no writes beyond the lazy website creation.
func (t *Tracker) Decide(ctx context.Context, store Store, url, contentHash string, proposed int64) (Decision, error) {
	if err := validateInput(contentHash, proposed); err != nil {
		return Decision{}, err
	}

	website, err := store.GetOrCreateWebsite(ctx, url)
	if err != nil {
		return Decision{}, storeErr("get_or_create_website", err)
	}

	exists, err := store.VisitExists(ctx, website.ID, contentHash)
	if err != nil {
		return Decision{}, storeErr("visit_exists", err)
	}
	if exists {
		return DecisionDuplicate(website.ID, website.LatestVersion), nil
	}

	version := t.policy.Assign(website.LatestVersion, proposed)
	if err := store.AdvanceLatestVersion(ctx, website.ID, version); err != nil {
		return Decision{}, storeErr("advance_latest_version", err)
	}

	return DecisionNew(website.ID, version), nil
}

// Matches reports whether d and other took the same branch with the same version.
func (d Decision) Matches(other Decision) bool {
	return d.Outcome == other.Outcome && d.Version == other.Version
}

func validateInput(contentHash string, proposed int64) error {
	if proposed < 0 {
		return apperr.Validation("version", "must not be negative")
	}
	if contentHash == "" {
		return apperr.Validation("contentHash", "cannot be empty")
	}
	return nil
}

// storeErr marks lock contention as transient.
func storeErr(op string, err error) error {
	return apperr.Store(op, err, storage.IsBusy(err))
}
