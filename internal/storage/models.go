package storage

import "time"

// Website is a tracked URL and its version counter.
type Website struct {
	ID            int64
	URL           string
	LatestVersion int64 // never decreases
	CreatedAt     time.Time
}

// Visit is one accepted snapshot of a website.
type Visit struct {
	ID             int64
	WebsiteID      int64
	URL            string // joined from websites on reads
	Timestamp      time.Time
	Version        int64
	ContentHash    string
	CleanedContent string
	Title          string
	IsBookmarked   bool
	IdleState      string
	Links          []string
	Images         []string
}

// Geolocation is the one-to-one location row of a visit.
type Geolocation struct {
	VisitID   int64
	Latitude  float64
	Longitude float64
}

// Cookie is a cookie registry entry keyed by (Name, Domain).
type Cookie struct {
	ID       int64
	Name     string
	Domain   string
	Path     string
	Raw      string // JSON of the cookie as captured
	LastSeen time.Time
}

// TopSite is a top site registry entry keyed by URL.
type TopSite struct {
	ID       int64
	URL      string
	Title    string
	LastSeen time.Time
}

// HistoryEntry is a browsing history record keyed by URL.
type HistoryEntry struct {
	ID            int64
	URL           string
	Title         string
	LastVisitTime time.Time
	VisitCount    int64
}
