package enrich

import (
	"fmt"
	"strings"
	"time"

	"webtracker/internal/apperr"
)

// SnapshotType names a kind of static browser state capture.
type SnapshotType string

const (
	SnapshotCookies  SnapshotType = "cookies"
	SnapshotHistory  SnapshotType = "history"
	SnapshotTopSites SnapshotType = "top_sites"
)

// SnapshotTypes lists every snapshot type in storage order.
var SnapshotTypes = []SnapshotType{SnapshotCookies, SnapshotHistory, SnapshotTopSites}

// ParseSnapshotType validates a snapshot type name.
func ParseSnapshotType(s string) (SnapshotType, error) {
	for _, t := range SnapshotTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", apperr.Validation("type", fmt.Sprintf("unknown snapshot type %q", s))
}

// Snapshot is an append-only capture of one kind of browser state, keyed by
// (Type, Timestamp). It is never versioned against a website.
type Snapshot struct {
	Type      SnapshotType
	Timestamp time.Time
	Document  string
	Entries   int
}

// Snapshots returns one entry per non-empty list in rec, captured at the given time.
func (r *Record) Snapshots(at time.Time) []Snapshot {
	var out []Snapshot

	if len(r.Cookies) > 0 {
		lines := make([]string, 0, len(r.Cookies))
		for _, c := range r.Cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}
			lines = append(lines, fmt.Sprintf("cookie %s on %s%s", c.Name, c.Domain, path))
		}
		out = append(out, Snapshot{Type: SnapshotCookies, Timestamp: at, Document: strings.Join(lines, "\n"), Entries: len(lines)})
	}

	if len(r.History) > 0 {
		lines := make([]string, 0, len(r.History))
		for _, h := range r.History {
			visited := time.UnixMilli(h.LastVisitMillis()).UTC().Format(time.RFC3339)
			lines = append(lines, fmt.Sprintf("%s (visited %s)", label(h.Title, h.URL), visited))
		}
		out = append(out, Snapshot{Type: SnapshotHistory, Timestamp: at, Document: strings.Join(lines, "\n"), Entries: len(lines)})
	}

	if len(r.TopSites) > 0 {
		lines := make([]string, 0, len(r.TopSites))
		for _, s := range r.TopSites {
			lines = append(lines, label(s.Title, s.URL))
		}
		out = append(out, Snapshot{Type: SnapshotTopSites, Timestamp: at, Document: strings.Join(lines, "\n"), Entries: len(lines)})
	}

	return out
}

func label(title, url string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t + " " + url
	}
	return url
}
