// Package syntax turns source text into the small tree the analyzer walks.
//
// Parsing is delegated to tree-sitter. The concrete syntax tree is then
// lowered into a closed set of node variants: the import forms, calls, and a
// transparent Block for everything else. Leaves that cannot contain an import
// or a call are dropped during lowering.
package syntax

import "strings"

// Node is one of *Import, *ImportFrom, *Call or *Block.
type Node interface {
	syntaxNode()
}

// Module is the root of a lowered tree.
type Module struct {
	Body []Node
}

// ImportedName is one entry of an import list. Path is the dotted name as
// written; Alias is empty when there is no "as" clause.
type ImportedName struct {
	Path  string
	Alias string
}

// Import is "import a, b.c as d".
type Import struct {
	Names []ImportedName
}

// ImportFrom is "from m import x, y as z" or "from m import *". Module keeps
// the leading dots of relative imports.
type ImportFrom struct {
	Module   string
	Names    []ImportedName
	Wildcard bool
}

// Call is a call expression. Children holds the lowered callee and argument
// subtrees in source order.
type Call struct {
	Callee   Expr
	Children []Node
}

// Block is any other node that contains imports or calls. Kind is the
// tree-sitter node type, kept for debugging.
type Block struct {
	Kind     string
	Children []Node
}

func (*Import) syntaxNode()     {}
func (*ImportFrom) syntaxNode() {}
func (*Call) syntaxNode()       {}
func (*Block) syntaxNode()      {}

// Expr is the callee of a call: *Name, *AttributeChain or *Opaque.
type Expr interface {
	exprNode()
	// Text renders the expression as it should appear in a report.
	Text() string
}

// Name is a bare identifier callee: f(...).
type Name struct {
	ID string
}

// AttributeChain is a dotted callee rooted at an identifier: a.b.c(...).
// Segments always has at least two entries.
type AttributeChain struct {
	Segments []string
}

// Opaque is any callee that is neither a name nor a pure attribute chain,
// such as f()(), xs[0](), (lambda: 1)() or "".join(...).
type Opaque struct {
	Source string
}

func (*Name) exprNode()           {}
func (*AttributeChain) exprNode() {}
func (*Opaque) exprNode()         {}

func (n *Name) Text() string { return n.ID }

func (a *AttributeChain) Text() string { return strings.Join(a.Segments, ".") }

// Base returns the leftmost identifier of the chain.
func (a *AttributeChain) Base() string { return a.Segments[0] }

func (o *Opaque) Text() string { return o.Source }
