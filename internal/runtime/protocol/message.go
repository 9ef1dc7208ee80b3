package protocol

import (
	"time"

	"github.com/drblury/maestro/internal/runtime/codec"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	"github.com/drblury/maestro/internal/runtime/ids"
)

// Kind discriminates the three message shapes on the wire.
type Kind string

const (
	KindRequest  Kind = "REQUEST"
	KindResponse Kind = "RESPONSE"
	KindError    Kind = "ERROR"
)

// Error codes stamped on ERROR replies by the dispatcher. Handlers can pick
// their own codes through ActionError; these cover the built-in failure modes.
const (
	CodeUnknownAction = "unknown_action"
	CodeHandlerError  = "handler_error"
	CodeHandlerPanic  = "handler_panic"
	CodeBadPayload    = "bad_payload"
)

// Message is the envelope exchanged between services. Requests flow through
// the target's inbox; replies travel back to the caller keyed by correlation
// ID, so Source and Target always name services, never goroutines.
type Message struct {
	CorrelationID string         `json:"correlationId"`
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	Action        string         `json:"action"`
	Kind          Kind           `json:"kind"`
	Payload       map[string]any `json:"payload,omitempty"`
	Code          string         `json:"code,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewRequest builds a REQUEST addressed to target's action, stamping a fresh
// correlation ID and UTC timestamp. The payload must be JSON-representable;
// values that cannot cross the message plane are rejected here, at the
// boundary, rather than surfacing later inside the target worker.
func NewRequest(source, target, action string, payload map[string]any) (*Message, error) {
	if target == "" {
		return nil, errspkg.ErrTargetRequired
	}
	if action == "" {
		return nil, errspkg.ErrActionNameRequired
	}
	if payload != nil {
		if _, err := codec.ToStruct(payload); err != nil {
			return nil, err
		}
	}

	return &Message{
		CorrelationID: ids.NewCorrelationID(),
		Source:        source,
		Target:        target,
		Action:        action,
		Kind:          KindRequest,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// NewResponse answers req with a RESPONSE carrying payload. The correlation
// ID is echoed so the caller can pair the reply with its request.
func NewResponse(req *Message, payload map[string]any) *Message {
	return &Message{
		CorrelationID: req.CorrelationID,
		Source:        req.Target,
		Target:        req.Source,
		Action:        req.Action,
		Kind:          KindResponse,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}
}

// NewErrorResponse answers req with an ERROR carrying a machine-readable
// code and a human-readable reason.
func NewErrorResponse(req *Message, code, reason string) *Message {
	return &Message{
		CorrelationID: req.CorrelationID,
		Source:        req.Target,
		Target:        req.Source,
		Action:        req.Action,
		Kind:          KindError,
		Code:          code,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
}

// IsReply reports whether m answers a request.
func (m *Message) IsReply() bool {
	return m.Kind == KindResponse || m.Kind == KindError
}
