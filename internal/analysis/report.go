package analysis

import "github.com/jward/callmap/internal/syntax"

// FileReport summarizes one file. Imports holds canonical libraries,
// deduplicated, first-seen order. Calls holds one entry per call site in
// source order: the attributed library or the fallback callee text.
type FileReport struct {
	Imports []string `json:"imports"`
	Calls   []string `json:"calls"`
}

// EmptyReport is the report of a file that could not be read or parsed.
func EmptyReport() FileReport {
	return FileReport{Imports: []string{}, Calls: []string{}}
}

// Analyze walks mod and builds its report.
func Analyze(mod *syntax.Module) FileReport {
	table, calls := Walk(mod)
	return BuildReport(table, calls)
}

// BuildReport assembles a report from the end-of-traversal table and the
// call attributions. Calls keep duplicates: repeated calls into a library
// are signal.
func BuildReport(table *Table, calls []Resolution) FileReport {
	r := EmptyReport()
	r.Imports = append(r.Imports, table.Libraries()...)
	for _, c := range calls {
		r.Calls = append(r.Calls, c.Value())
	}
	return r
}

// Clone returns a deep copy of r.
func (r FileReport) Clone() FileReport {
	out := EmptyReport()
	out.Imports = append(out.Imports, r.Imports...)
	out.Calls = append(out.Calls, r.Calls...)
	return out
}
