package analysis

import "github.com/jward/callmap/internal/syntax"

// walker carries the state of one traversal.
type walker struct {
	table *Table
	calls []Resolution
}

// Walk traverses mod and returns the table as it stands at the end of the
// traversal together with every call attribution in source order.
func Walk(mod *syntax.Module) (*Table, []Resolution) {
	w := &walker{table: NewTable()}
	if mod != nil {
		w.walkAll(mod.Body)
	}
	return w.table, w.calls
}

func (w *walker) walkAll(nodes []syntax.Node) {
	for _, n := range nodes {
		w.walk(n)
	}
}

func (w *walker) walk(n syntax.Node) {
	switch n := n.(type) {
	case *syntax.Import:
		for _, name := range n.Names {
			w.table.Bind(ModuleBinding(name.Path, name.Alias))
		}
	case *syntax.ImportFrom:
		if n.Wildcard {
			w.table.NoteLibrary(n.Module)
		}
		for _, name := range n.Names {
			w.table.Bind(MemberBinding(n.Module, name.Path, name.Alias))
		}
	case *syntax.Call:
		w.calls = append(w.calls, Resolve(w.table, n.Callee))
		w.walkAll(n.Children)
	case *syntax.Block:
		w.walkAll(n.Children)
	}
}
