// Package scripts embeds the built-in Risor hook scripts. A hook receives
// the globals path, imports and calls and must evaluate to a map with
// "imports" and "calls" lists.
package scripts

import "embed"

// FS holds the hooks under hooks/.
//
//go:embed hooks/*.risor
var FS embed.FS

// Prefix selects an embedded hook on the command line, as in
// "embedded:hooks/drop_builtins.risor".
const Prefix = "embedded:"
