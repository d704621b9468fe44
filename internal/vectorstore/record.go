package vectorstore

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// TypeVisit marks records holding a page visit. Snapshot records carry their
// snapshot type instead.
const TypeVisit = "visit"

// Metadata is stored alongside every vector.
type Metadata struct {
	Type        string
	URL         string
	Title       string
	Timestamp   int64 // unix milliseconds
	Version     int64
	ContentHash string
}

// Record is one stored vector with its document text.
type Record struct {
	ID       string
	Vector   []float32
	Document string
	Metadata Metadata
}

// Result is a record returned by a similarity query.
type Result struct {
	Record
	Score float32
}

// Filter selects records. Empty strings and nil bounds match everything;
// bounds are inclusive.
type Filter struct {
	ID           string
	URL          string
	ContentHash  string
	Type         string
	VersionMin   *int64
	VersionMax   *int64
	TimestampMin *int64
	TimestampMax *int64
}

// Matches reports whether rec satisfies every condition of f.
func (f Filter) Matches(rec Record) bool {
	m := rec.Metadata
	switch {
	case f.ID != "" && rec.ID != f.ID:
		return false
	case f.URL != "" && m.URL != f.URL:
		return false
	case f.ContentHash != "" && m.ContentHash != f.ContentHash:
		return false
	case f.Type != "" && m.Type != f.Type:
		return false
	}
	return inRange(m.Version, f.VersionMin, f.VersionMax) &&
		inRange(m.Timestamp, f.TimestampMin, f.TimestampMax)
}

// equality returns the exact-match conditions of f keyed by payload field.
func (f Filter) equality() map[string]string {
	eq := make(map[string]string, 4)
	if f.ID != "" {
		eq[fieldID] = f.ID
	}
	if f.URL != "" {
		eq[fieldURL] = f.URL
	}
	if f.ContentHash != "" {
		eq[fieldContentHash] = f.ContentHash
	}
	if f.Type != "" {
		eq[fieldType] = f.Type
	}
	return eq
}

func inRange(v int64, lo, hi *int64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

// Payload field names shared by all backends.
const (
	fieldID          = "id"
	fieldType        = "type"
	fieldURL         = "url"
	fieldTitle       = "title"
	fieldTimestamp   = "timestamp"
	fieldVersion     = "version"
	fieldContentHash = "content_hash"
	fieldDocument    = "document"
)

// VisitID is the record id of a visit: url:version.
func VisitID(url string, version int64) string {
	return url + ":" + strconv.FormatInt(version, 10)
}

// SnapshotID is the record id of a static snapshot:
// type:timestamp_ms:digest, where digest identifies the visit that captured
// it. Snapshots of different visits taken in the same millisecond keep
// separate records.
func SnapshotID(snapshotType string, timestampMillis int64, visitURL, contentHash string) string {
	sum := sha256.Sum256([]byte(visitURL + "\x00" + contentHash))
	return snapshotType + ":" + strconv.FormatInt(timestampMillis, 10) + ":" + hex.EncodeToString(sum[:6])
}

// PointUUID maps a record id to a name-based UUID for backends that only
// accept UUID point ids.
func PointUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

// Int64 returns a pointer to v, for filter bounds.
func Int64(v int64) *int64 {
	return &v
}

func sortByTimestamp(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := cmp.Compare(a.Metadata.Timestamp, b.Metadata.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortByScore(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
