package ingest

import (
	"time"

	"webtracker/internal/enrich"
	"webtracker/internal/tracker"
)

// Submission is one captured visit as sent by the client.
type Submission struct {
	URL   string
	Title string
	// Content is the raw HTML of the page.
	Content string
	// ContentHash identifies the content. When empty it is derived as the
	// SHA-256 of Content.
	ContentHash string
	// Version is the client's proposed version.
	Version int64
	// Timestamp is the capture time. Zero means the time of submission.
	Timestamp time.Time
	Metadata  enrich.Metadata
}

// Result reports what happened to a submission.
type Result struct {
	Outcome tracker.Outcome
	// Version is the stored version for new visits and the current
	// latest_version for duplicates.
	Version int64
	// ID is the vector record id of a new visit. Empty for duplicates.
	ID          string
	ContentHash string
	Title       string
	Snapshots   int
}

// ReindexStats summarizes one reindex run.
type ReindexStats struct {
	// VisitsTotal is the number of mirror rows when the run started.
	VisitsTotal int `json:"visits_total"`
	// VisitsProcessed is the number of mirror rows examined.
	VisitsProcessed int `json:"visits_processed"`
	// VisitsEmbedded is the number of vector records rewritten.
	VisitsEmbedded int `json:"visits_embedded"`
	// VisitsSuperseded counts rows skipped because a later row owns the same record id.
	VisitsSuperseded int `json:"visits_superseded"`
	// VisitsFailed counts rows whose embedding or upsert failed.
	VisitsFailed int `json:"visits_failed"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}
