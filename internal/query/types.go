package query

import "time"

// Search limits.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

// Visit is a stored page visit as returned by reads.
type Visit struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Version     int64     `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ContentHash string    `json:"content_hash"`
	Document    string    `json:"document"`
}

// SearchHit is a visit ranked by similarity to the query text.
type SearchHit struct {
	Visit
	Score float32 `json:"score"`
}

// SnapshotEntry is one static snapshot record.
type SnapshotEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Document  string    `json:"document"`
}
