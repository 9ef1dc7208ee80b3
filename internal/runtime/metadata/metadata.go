// Package metadata holds the string headers that travel with lifecycle
// events on the bus, plus the reserved key names the runtime stamps.
package metadata

// Metadata is the header map attached to a published lifecycle event.
// All mutating helpers copy; a Metadata value handed to a sink is never
// shared with the publisher that produced it.
type Metadata map[string]string

func (m Metadata) grown(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	out := make(Metadata, size)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of m.
func (m Metadata) Clone() Metadata {
	return m.grown(0)
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key, value string) Metadata {
	out := m.grown(1)
	out[key] = value
	return out
}

// WithAll returns a copy of m with every entry of entries merged in.
// Entries win over existing keys.
func (m Metadata) WithAll(entries Metadata) Metadata {
	out := m.grown(len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out
}

// New builds a Metadata map from alternating key/value pairs. A trailing
// key without a value is dropped.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
