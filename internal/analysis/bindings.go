// Package analysis attributes the calls in a lowered syntax tree to the
// libraries they come from.
//
// A single pre-order walk maintains a Table of import bindings. Each call is
// resolved against the table as it stands at that point of the walk, so a
// later import never changes the attribution of an earlier call.
package analysis

import "fmt"

// BindingKind records which import form produced a binding.
type BindingKind int

const (
	KindModule      BindingKind = iota // import X, import X.Y
	KindModuleAlias                    // import X as Y
	KindMember                         // from X import Y
	KindMemberAlias                    // from X import Y as Z
)

func (k BindingKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindModuleAlias:
		return "module_alias"
	case KindMember:
		return "member"
	case KindMemberAlias:
		return "member_alias"
	}
	return fmt.Sprintf("BindingKind(%d)", int(k))
}

// ImportBinding associates a name usable in later code with the library it
// was imported from.
type ImportBinding struct {
	LocalName string
	Library   string
	Kind      BindingKind
}

// Table holds the import bindings of one traversal. It is not safe for
// concurrent use and is never shared between files.
type Table struct {
	bindings map[string]ImportBinding

	// libraries lists canonical libraries in first-seen order, independent
	// of shadowing.
	libraries []string
	seen      map[string]bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		bindings: make(map[string]ImportBinding),
		seen:     make(map[string]bool),
	}
}

// Bind installs b, replacing any earlier binding for b.LocalName.
func (t *Table) Bind(b ImportBinding) {
	t.bindings[b.LocalName] = b
	t.NoteLibrary(b.Library)
}

// NoteLibrary records lib as imported without binding a name, as for
// "from lib import *".
func (t *Table) NoteLibrary(lib string) {
	if lib == "" || t.seen[lib] {
		return
	}
	t.seen[lib] = true
	t.libraries = append(t.libraries, lib)
}

// Lookup returns the current binding for name.
func (t *Table) Lookup(name string) (ImportBinding, bool) {
	b, ok := t.bindings[name]
	return b, ok
}

// Libraries returns the canonical libraries seen so far, deduplicated, in
// first-seen order.
func (t *Table) Libraries() []string {
	out := make([]string, len(t.libraries))
	copy(out, t.libraries)
	return out
}

// Len returns the number of live bindings.
func (t *Table) Len() int {
	return len(t.bindings)
}

// ModuleBinding is the binding produced by "import path" or
// "import path as alias". The local name of an unaliased dotted import is
// its leftmost segment while the library keeps the full path.
func ModuleBinding(path, alias string) ImportBinding {
	if alias != "" {
		return ImportBinding{LocalName: alias, Library: path, Kind: KindModuleAlias}
	}
	return ImportBinding{LocalName: leftmost(path), Library: path, Kind: KindModule}
}

// MemberBinding is the binding produced by "from module import name" or
// "from module import name as alias". The library is the module, not
// module.name.
func MemberBinding(module, name, alias string) ImportBinding {
	if alias != "" {
		return ImportBinding{LocalName: alias, Library: module, Kind: KindMemberAlias}
	}
	return ImportBinding{LocalName: name, Library: module, Kind: KindMember}
}

func leftmost(dotted string) string {
	for i := 0; i < len(dotted); i++ {
		if dotted[i] == '.' {
			return dotted[:i]
		}
	}
	return dotted
}
