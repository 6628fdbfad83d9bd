package callmap

import "github.com/jward/callmap/internal/analysis"

// FileReport is the per-file result: imports and attributed calls.
// This is a Go type alias (=) for the internal analysis type.
type FileReport = analysis.FileReport

// CorpusReport maps absolute file paths to their reports.
type CorpusReport map[string]FileReport

// EmptyReport is the report of a file that could not be read or parsed.
func EmptyReport() FileReport {
	return analysis.EmptyReport()
}
