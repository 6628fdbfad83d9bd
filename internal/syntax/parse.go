package syntax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrMalformedSource is returned when the source contains syntax errors.
// tree-sitter always produces a tree; any ERROR or MISSING node makes the
// whole file malformed.
var ErrMalformedSource = errors.New("malformed source")

// Parse parses src and lowers the result. Parse is safe for concurrent use:
// each call creates its own tree-sitter parser.
//
// A done ctx interrupts parsing; the returned error then wraps ctx.Err()
// and never ErrMalformedSource.
func Parse(ctx context.Context, src []byte) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("syntax: parse interrupted: %w", err)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("syntax: parse interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("syntax: tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	// A cancelled parse may still hand back a partial tree.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("syntax: parse interrupted: %w", err)
	}
	if root.HasError() {
		return nil, fmt.Errorf("syntax: %w at %s", ErrMalformedSource, firstErrorPos(root))
	}
	return &Module{Body: lowerChildren(root, src)}, nil
}

// lowerChildren lowers the named children of n and drops the ones that
// contain neither imports nor calls.
func lowerChildren(n *sitter.Node, src []byte) []Node {
	var out []Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if lowered := lower(child, src); lowered != nil {
			out = append(out, lowered)
		}
	}
	return out
}

func lower(n *sitter.Node, src []byte) Node {
	switch n.Type() {
	case "import_statement":
		return lowerImport(n, src)
	case "import_from_statement", "future_import_statement":
		return lowerImportFrom(n, src)
	case "call":
		return &Call{
			Callee:   lowerCallee(n.ChildByFieldName("function"), src),
			Children: lowerChildren(n, src),
		}
	}
	if n.NamedChildCount() == 0 {
		return nil
	}
	children := lowerChildren(n, src)
	if len(children) == 0 {
		return nil
	}
	return &Block{Kind: n.Type(), Children: children}
}

// lowerImport handles "import a", "import a.b", "import a as b" and lists of
// those.
func lowerImport(n *sitter.Node, src []byte) *Import {
	imp := &Import{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name, ok := importedName(n.NamedChild(i), src); ok {
			imp.Names = append(imp.Names, name)
		}
	}
	return imp
}

// lowerImportFrom handles "from m import ...", relative imports and
// "from __future__ import ...". Names are everything after the "import"
// keyword; the module is everything before it.
func lowerImportFrom(n *sitter.Node, src []byte) *ImportFrom {
	imp := &ImportFrom{}
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
	} else if mod := n.ChildByFieldName("module_name"); mod != nil {
		imp.Module = compact(mod.Content(src))
	}

	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "import" {
			sawImport = true
			continue
		}
		if !sawImport {
			continue
		}
		if child.Type() == "wildcard_import" {
			imp.Wildcard = true
			continue
		}
		if name, ok := importedName(child, src); ok {
			imp.Names = append(imp.Names, name)
		}
	}
	return imp
}

func importedName(n *sitter.Node, src []byte) (ImportedName, bool) {
	if n == nil {
		return ImportedName{}, false
	}
	switch n.Type() {
	case "dotted_name", "identifier":
		return ImportedName{Path: compact(n.Content(src))}, true
	case "aliased_import":
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		if name == nil {
			return ImportedName{}, false
		}
		out := ImportedName{Path: compact(name.Content(src))}
		if alias != nil {
			out.Alias = alias.Content(src)
		}
		return out, true
	}
	return ImportedName{}, false
}

// lowerCallee classifies a call's function expression.
func lowerCallee(n *sitter.Node, src []byte) Expr {
	if n == nil {
		return &Opaque{}
	}
	switch n.Type() {
	case "identifier":
		return &Name{ID: n.Content(src)}
	case "attribute":
		if segs, ok := chainSegments(n, src); ok {
			return &AttributeChain{Segments: segs}
		}
	}
	return &Opaque{Source: n.Content(src)}
}

// chainSegments flattens a.b.c into [a b c]. It fails when the chain is not
// rooted at an identifier, e.g. f().b or xs[0].b.
func chainSegments(n *sitter.Node, src []byte) ([]string, bool) {
	switch n.Type() {
	case "identifier":
		return []string{n.Content(src)}, true
	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return nil, false
		}
		segs, ok := chainSegments(obj, src)
		if !ok {
			return nil, false
		}
		return append(segs, attr.Content(src)), true
	}
	return nil, false
}

// compact strips whitespace and line continuations from a dotted name so
// "os . path" and "os.path" bind the same library.
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\\':
			return -1
		}
		return r
	}, s)
}

// firstErrorPos returns "line:col" (1-based line) of the first ERROR or
// MISSING node, for diagnostics.
func firstErrorPos(root *sitter.Node) string {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == "ERROR" || n.IsMissing() {
			p := n.StartPoint()
			return fmt.Sprintf("%d:%d", p.Row+1, p.Column)
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil && child.HasError() {
				stack = append(stack, child)
			}
		}
	}
	p := root.StartPoint()
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column)
}
