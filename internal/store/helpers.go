package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ContentHash returns the hex-encoded SHA-256 of src.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// marshalList converts []string to JSON text for storage. nil and empty
// lists both store as "[]".
func marshalList(xs []string) string {
	if len(xs) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(xs)
	return string(b)
}

// unmarshalList converts JSON text back to []string. The result is never
// nil.
func unmarshalList(s string) []string {
	out := []string{}
	if s == "" || s == "null" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	if out == nil {
		out = []string{}
	}
	return out
}
