// Package events provides the CloudEvents v1.0 compatible envelope used for
// lifecycle telemetry. Every notable supervision outcome (a service starting,
// dying, being restarted, a call timing out, an inbox overflowing) is emitted
// as one of these events and forwarded to the configured sinks.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/drblury/maestro/internal/runtime/codec"
	idspkg "github.com/drblury/maestro/internal/runtime/ids"
)

// SpecVersion is the CloudEvents specification version implemented.
const SpecVersion = "1.0"

// Event represents a CloudEvents v1.0 compliant lifecycle event.
// See https://github.com/cloudevents/spec/blob/v1.0/spec.md for details.
type Event struct {
	// Required attributes

	// SpecVersion is the version of the CloudEvents specification.
	// MUST be set to "1.0" for CloudEvents v1.0.
	SpecVersion string `json:"specversion"`

	// Type describes what happened, e.g. "service.dead" or "call.timeout".
	Type string `json:"type"`

	// Source identifies the runtime component that observed the occurrence,
	// e.g. "maestro/supervisor" or "maestro/monitor".
	Source string `json:"source"`

	// ID uniquely identifies the event. If not set, a ULID will be generated.
	ID string `json:"id"`

	// Optional attributes

	// Time is the timestamp when the occurrence happened.
	// If not set, the current time is used.
	Time time.Time `json:"time,omitempty"`

	// DataContentType describes the content type of the data attribute.
	// Lifecycle events carry "application/json".
	DataContentType *string `json:"datacontenttype,omitempty"`

	// Subject names the supervised service the event concerns.
	Subject *string `json:"subject,omitempty"`

	// Data is the event payload. Can be any type that is JSON-serializable.
	Data any `json:"data,omitempty"`

	// Extensions contains CloudEvents extension attributes. The runtime uses
	// extensions prefixed with "ms_" for supervision semantics.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// New creates a new event with required fields populated.
// ID is auto-generated using ULID, Time is set to current time.
func New(eventType, source string, data any) Event {
	return Event{
		SpecVersion: SpecVersion,
		Type:        eventType,
		Source:      source,
		ID:          idspkg.NewEventID(),
		Time:        time.Now().UTC(),
		Data:        data,
		Extensions:  make(map[string]any),
	}
}

// NewWithID creates a new event with a specific ID.
func NewWithID(id, eventType, source string, data any) Event {
	evt := New(eventType, source, data)
	evt.ID = id
	return evt
}

// WithSubject sets the subject field and returns the event.
func (e Event) WithSubject(subject string) Event {
	e.Subject = &subject
	return e
}

// WithDataContentType sets the data content type and returns the event.
func (e Event) WithDataContentType(contentType string) Event {
	e.DataContentType = &contentType
	return e
}

// WithExtension sets an extension attribute and returns the event.
func (e Event) WithExtension(key string, value any) Event {
	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	e.Extensions[key] = value
	return e
}

// GetExtension retrieves an extension value by key.
// Returns nil if the extension does not exist.
func (e Event) GetExtension(key string) any {
	if e.Extensions == nil {
		return nil
	}
	return e.Extensions[key]
}

// GetExtensionString retrieves an extension value as a string.
// Returns empty string if the extension does not exist.
func (e Event) GetExtensionString(key string) string {
	v := e.GetExtension(key)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// GetExtensionInt retrieves an extension value as an int.
// Returns 0 if the extension does not exist or cannot be converted.
func (e Event) GetExtensionInt(key string) int {
	v := e.GetExtension(key)
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// GetExtensionInt64 retrieves an extension value as an int64.
// Returns 0 if the extension does not exist or cannot be converted.
func (e Event) GetExtensionInt64(key string) int64 {
	v := e.GetExtension(key)
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// GetExtensionBool retrieves an extension value as a bool.
// Returns false if the extension does not exist or is not a bool.
func (e Event) GetExtensionBool(key string) bool {
	v := e.GetExtension(key)
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// GetExtensionTime retrieves an extension value as a time.Time.
// Supports RFC3339 strings and unix timestamps (seconds).
// Returns zero time if the extension does not exist or cannot be parsed.
func (e Event) GetExtensionTime(key string) time.Time {
	v := e.GetExtension(key)
	if v == nil {
		return time.Time{}
	}

	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case int64:
		return time.Unix(t, 0)
	case float64:
		return time.Unix(int64(t), 0)
	case json.Number:
		i, _ := t.Int64()
		return time.Unix(i, 0)
	default:
		return time.Time{}
	}
}

// Validate checks that the event has all required CloudEvents attributes.
func (e Event) Validate() error {
	if e.SpecVersion == "" {
		return fmt.Errorf("specversion is required")
	}
	if e.SpecVersion != SpecVersion {
		return fmt.Errorf("specversion must be %q, got %q", SpecVersion, e.SpecVersion)
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// Clone creates a deep copy of the event.
func (e Event) Clone() Event {
	cloned := e

	if e.DataContentType != nil {
		v := *e.DataContentType
		cloned.DataContentType = &v
	}
	if e.Subject != nil {
		v := *e.Subject
		cloned.Subject = &v
	}

	if e.Extensions != nil {
		cloned.Extensions = make(map[string]any, len(e.Extensions))
		for k, v := range e.Extensions {
			cloned.Extensions[k] = v
		}
	}

	return cloned
}

// MarshalJSON implements json.Marshaler for the CloudEvents JSON format,
// flattening extensions into the top-level object.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)

	m["specversion"] = e.SpecVersion
	m["type"] = e.Type
	m["source"] = e.Source
	m["id"] = e.ID

	if !e.Time.IsZero() {
		m["time"] = e.Time.Format(time.RFC3339Nano)
	}
	if e.DataContentType != nil {
		m["datacontenttype"] = *e.DataContentType
	}
	if e.Subject != nil {
		m["subject"] = *e.Subject
	}
	if e.Data != nil {
		m["data"] = e.Data
	}

	for k, v := range e.Extensions {
		m[k] = v
	}

	return codec.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler for the CloudEvents JSON format.
// Unknown top-level attributes become extensions.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := codec.Unmarshal(data, &m); err != nil {
		return err
	}

	knownAttrs := map[string]bool{
		"specversion":     true,
		"type":            true,
		"source":          true,
		"id":              true,
		"time":            true,
		"datacontenttype": true,
		"subject":         true,
		"data":            true,
	}

	if raw, ok := m["specversion"]; ok {
		if err := codec.Unmarshal(raw, &e.SpecVersion); err != nil {
			return fmt.Errorf("invalid specversion: %w", err)
		}
	}
	if raw, ok := m["type"]; ok {
		if err := codec.Unmarshal(raw, &e.Type); err != nil {
			return fmt.Errorf("invalid type: %w", err)
		}
	}
	if raw, ok := m["source"]; ok {
		if err := codec.Unmarshal(raw, &e.Source); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
	}
	if raw, ok := m["id"]; ok {
		if err := codec.Unmarshal(raw, &e.ID); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	}

	if raw, ok := m["time"]; ok {
		var timeStr string
		if err := codec.Unmarshal(raw, &timeStr); err != nil {
			return fmt.Errorf("invalid time: %w", err)
		}
		t, err := ParseTime(timeStr)
		if err != nil {
			return fmt.Errorf("invalid time format: %w", err)
		}
		e.Time = t
	}
	if raw, ok := m["datacontenttype"]; ok {
		var v string
		if err := codec.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid datacontenttype: %w", err)
		}
		e.DataContentType = &v
	}
	if raw, ok := m["subject"]; ok {
		var v string
		if err := codec.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid subject: %w", err)
		}
		e.Subject = &v
	}
	if raw, ok := m["data"]; ok {
		var v any
		if err := codec.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}
		e.Data = v
	}

	e.Extensions = make(map[string]any)
	for k, raw := range m {
		if knownAttrs[k] {
			continue
		}
		var v any
		if err := codec.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid extension %q: %w", k, err)
		}
		e.Extensions[k] = v
	}

	return nil
}
