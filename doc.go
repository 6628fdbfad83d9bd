// Package callmap reports, for each Python source file, which modules it
// imports and which library each of its calls most likely comes from. It
// never runs the code; everything is derived from the syntax tree.
//
// # Pipeline
//
// For each file:
//
//  1. Parse: tree-sitter builds a concrete syntax tree, which is lowered
//     into import, call and block nodes. A file with syntax errors yields an
//     empty report.
//
//  2. Walk: a single pre-order traversal maintains a table of import
//     bindings and attributes every call to a library using the table as it
//     stands at that call. Unresolvable calls keep their callee text.
//
//  3. Post-process: an optional Risor hook script may rewrite the report.
//
// # Usage
//
//	e, err := callmap.New(callmap.WithWorkers(4))
//	if err != nil { ... }
//	defer e.Close()
//
//	corpus, err := e.AnalyzePaths(ctx, []string{"path/to/project"})
//
// A directory contributes its direct *.py children only; subdirectories are
// not descended into.
//
// # Attribution
//
//	import os                      os.path.join(...)  -> "os"
//	import numpy as np             np.array(...)      -> "numpy"
//	from json import dumps as js   js(...)            -> "json"
//	import xml.etree.ElementTree   xml.etree...()     -> "xml.etree.ElementTree"
//	(no import)                    helper()           -> "helper"
//
// Reassigning an imported name to a non-import value is not tracked: the
// import binding stays visible.
//
// # Caching
//
// [WithDatabase] keeps reports in SQLite keyed by path and content hash, so
// unchanged files are not parsed again.
package callmap
