package analysis

import "github.com/jward/callmap/internal/syntax"

// Resolution is the attribution of one call site. Library is set only when
// Resolved is true. Callee is always the fallback text.
type Resolution struct {
	Callee   string
	Library  string
	Resolved bool
}

// Value is what the call contributes to a report: the library when
// resolved, the callee text otherwise.
func (r Resolution) Value() string {
	if r.Resolved {
		return r.Library
	}
	return r.Callee
}

// Resolve attributes callee using the current state of t. It never fails:
// anything it cannot trace is returned unresolved with its text.
//
// Only the leftmost identifier of an attribute chain is looked up; the rest
// of the chain does not take part in the library identity, so os.path.join
// attributes to "os" after "import os".
func Resolve(t *Table, callee syntax.Expr) Resolution {
	switch c := callee.(type) {
	case nil:
		// Hand-built trees may omit the callee.
		return Resolution{}
	case *syntax.Name:
		return lookup(t, c.ID, c.Text())
	case *syntax.AttributeChain:
		return lookup(t, c.Base(), c.Text())
	default: // *syntax.Opaque
		return Resolution{Callee: c.Text()}
	}
}

func lookup(t *Table, name, text string) Resolution {
	if b, ok := t.Lookup(name); ok {
		return Resolution{Callee: text, Library: b.Library, Resolved: true}
	}
	return Resolution{Callee: text}
}
