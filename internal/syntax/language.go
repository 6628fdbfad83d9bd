package syntax

import (
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Extension is the file extension of analyzable source files. Matching is
// exact: "module.PY" is not a source file.
const Extension = ".py"

// The grammar is lazily initialized on first use.
var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter grammar used to parse source files.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// IsSourceFile reports whether path names a source file by its extension.
func IsSourceFile(path string) bool {
	return filepath.Ext(path) == Extension
}
