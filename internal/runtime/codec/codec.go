// Package codec wraps the sonic JSON implementation behind the small
// surface the runtime needs. Every payload and event that crosses a
// serialization boundary goes through here, so the JSON backend stays in
// one place.
package codec

import (
	"io"

	"github.com/bytedance/sonic"
)

// api uses sonic's std-compatible configuration. Handlers depend on the
// encoding/json semantics for map ordering and number handling.
var api = sonic.ConfigStd

// Marshal renders v as compact JSON.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent renders v as indented JSON, for logs and HTTP responses
// meant to be read by humans.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal fills v from JSON data.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Encode streams v as JSON onto w.
func Encode(w io.Writer, v any) error {
	return api.NewEncoder(w).Encode(v)
}

// Decode fills v from the JSON stream r.
func Decode(r io.Reader, v any) error {
	return api.NewDecoder(r).Decode(v)
}
