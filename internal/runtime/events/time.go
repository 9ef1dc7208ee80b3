package events

import "time"

// Timestamp layouts for event attributes.
const (
	// TimeFormat is the wire layout for event timestamps (RFC3339).
	TimeFormat = time.RFC3339

	// TimeFormatNano keeps nanosecond precision where a sink preserves it.
	TimeFormatNano = time.RFC3339Nano
)

// looseLayouts are the non-RFC3339 shapes external sinks have been seen
// to emit. Tried only after both RFC3339 variants fail.
var looseLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an event timestamp, accepting RFC3339 with or without
// nanoseconds plus the loose layouts above.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormatNano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Layout:  TimeFormat,
		Value:   s,
		Message: "cannot parse as event time",
	}
}

// FormatTime renders t for the wire, empty for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
