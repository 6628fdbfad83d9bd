package store

import "time"

// Report is a cached file report. Hash is the content hash of the source
// the report was computed from.
type Report struct {
	Path       string
	Hash       string
	Imports    []string
	Calls      []string
	AnalyzedAt time.Time
}

// ReportCache is the subset of Store the engine depends on.
type ReportCache interface {
	Lookup(path, hash string) (*Report, error)
	Save(r *Report) error
}

// Compile-time check: *Store satisfies ReportCache.
var _ ReportCache = (*Store)(nil)
