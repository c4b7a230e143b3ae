// Package jsonutil encodes JSON without HTML escaping. Engine documents and
// API payloads carry source snippets, so "<" and "&" must survive encoding
// byte-for-byte instead of turning into < sequences.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"io"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & and without
// the trailing newline json.Encoder appends.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeNoEscape(&buf, v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EncodeNoEscape writes v as JSON to w with HTML escaping disabled.
func EncodeNoEscape(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation, for documents
// meant to be read by people (archived analyses on disk).
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
