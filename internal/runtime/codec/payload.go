package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts a payload map into a structpb.Struct. Conversion fails
// on values with no JSON representation, which makes it the validation
// boundary for payloads entering the message plane.
func ToStruct(payload map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON-representable: %w", err)
	}
	return s, nil
}

// FromStruct converts a structpb.Struct back into a plain payload map.
// A nil struct yields a nil map.
func FromStruct(s *structpb.Struct) map[string]any {
	if s == nil {
		return nil
	}
	return s.AsMap()
}

// PayloadOf normalizes any JSON-marshalable value into a payload map by
// round-tripping it through the codec. Struct tags apply as usual.
func PayloadOf(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}

	raw, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("value does not encode to a JSON object: %w", err)
	}
	return payload, nil
}

// DecodePayload fills out from a payload map, applying the same rules as
// unmarshaling the payload's JSON encoding.
func DecodePayload(payload map[string]any, out any) error {
	raw, err := Marshal(payload)
	if err != nil {
		return err
	}
	return Unmarshal(raw, out)
}
