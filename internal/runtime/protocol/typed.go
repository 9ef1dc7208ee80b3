package protocol

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/maestro/internal/runtime/codec"
)

// Typed adapts a strongly typed handler into a HandlerFunc. The request
// payload decodes into In; the returned Out encodes back into a payload map
// using the usual struct tags. Payloads that do not decode become
// bad_payload ERROR replies.
func Typed[In any, Out any](fn func(req *Request, in In) (Out, error)) HandlerFunc {
	return func(req *Request) (map[string]any, error) {
		var in In
		if err := codec.DecodePayload(req.Msg.Payload, &in); err != nil {
			return nil, &ActionError{Code: CodeBadPayload, Reason: err.Error()}
		}

		out, err := fn(req, in)
		if err != nil {
			return nil, err
		}
		return codec.PayloadOf(out)
	}
}

// Proto adapts a handler whose input is a protobuf message. The payload
// crosses the message plane as a protojson object and is unmarshaled into a
// fresh T per request. T must be a pointer to a generated message type;
// anything else is a programmer error and panics at registration.
func Proto[T proto.Message](fn func(req *Request, in T) (map[string]any, error)) HandlerFunc {
	prototype, err := protoPrototype[T]()
	if err != nil {
		panic(err)
	}

	return func(req *Request) (map[string]any, error) {
		raw, err := codec.Marshal(req.Msg.Payload)
		if err != nil {
			return nil, &ActionError{Code: CodeBadPayload, Reason: err.Error()}
		}

		in := clonePrototype(prototype)
		if err := protojson.Unmarshal(raw, in); err != nil {
			return nil, &ActionError{Code: CodeBadPayload,
				Reason: fmt.Sprintf("payload does not unmarshal into %T: %v", prototype, err)}
		}

		return fn(req, in)
	}
}

// FromProto converts a protobuf message into a response payload map,
// emitting unpopulated fields so consumers see a stable shape.
func FromProto(msg proto.Message) (map[string]any, error) {
	if isNilProto(msg) {
		return nil, nil
	}

	opts := protojson.MarshalOptions{EmitUnpopulated: true}
	raw, err := opts.Marshal(msg)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := codec.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func protoPrototype[T proto.Message]() (T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("maestro: proto handler requires a concrete message type")
	}
	if typ.Kind() != reflect.Ptr {
		return zero, fmt.Errorf("maestro: proto handler message type %s must be a pointer", typ)
	}

	inst := reflect.New(typ.Elem()).Interface()
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("maestro: unexpected prototype type %s", typ)
	}
	return typed, nil
}

func clonePrototype[T proto.Message](prototype T) T {
	cloned := proto.Clone(prototype)
	proto.Reset(cloned)
	return cloned.(T)
}

func isNilProto(msg proto.Message) bool {
	if msg == nil {
		return true
	}

	val := reflect.ValueOf(msg)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}
