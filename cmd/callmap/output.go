package main

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/jward/callmap"
)

// writeReport encodes corpus as a single JSON object. The encoding is
// buffered so stdout receives either the whole document or nothing.
func writeReport(w io.Writer, corpus callmap.CorpusReport, indent bool) error {
	if corpus == nil {
		corpus = callmap.CorpusReport{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(corpus); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
