package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"

	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
)

// Request carries one inbound request through a handler, bundling the
// message with the worker's logger and a Caller for reaching other services.
type Request struct {
	Ctx    context.Context
	Msg    *Message
	Logger loggingpkg.ServiceLogger
	Caller Caller
}

// Payload returns the request payload map, possibly nil.
func (r *Request) Payload() map[string]any {
	return r.Msg.Payload
}

// Caller lets a handler invoke other services while its own request is in
// flight. The supervisor binds one per worker.
type Caller interface {
	Call(ctx context.Context, target, action string, payload map[string]any) (map[string]any, error)
}

// HandlerFunc processes one request and returns the response payload.
type HandlerFunc func(req *Request) (map[string]any, error)

// ActionError carries an explicit wire code chosen by a handler. Returning
// one from a HandlerFunc controls the Code and Reason of the ERROR reply
// instead of the generic handler_error classification.
type ActionError struct {
	Code   string
	Reason string
}

func (e *ActionError) Error() string {
	return e.Code + ": " + e.Reason
}

// Errorf builds an ActionError with a formatted reason.
func Errorf(code, format string, args ...any) *ActionError {
	return &ActionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Mux routes requests to the handler registered for their action. The action
// set is fixed at registration time; workers consult it to advertise their
// capabilities.
type Mux struct {
	handlers map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for action. Empty actions, nil handlers and duplicate
// registrations are programmer errors and panic.
func (m *Mux) Handle(action string, h HandlerFunc) {
	if action == "" {
		panic("maestro: action name cannot be empty")
	}
	if h == nil {
		panic("maestro: handler for action " + action + " cannot be nil")
	}
	if _, dup := m.handlers[action]; dup {
		panic("maestro: duplicate action " + action)
	}
	m.handlers[action] = h
}

// Has reports whether action is registered.
func (m *Mux) Has(action string) bool {
	_, ok := m.handlers[action]
	return ok
}

// Actions returns the registered action names, sorted.
func (m *Mux) Actions() []string {
	actions := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		actions = append(actions, name)
	}
	sort.Strings(actions)
	return actions
}

// Dispatch runs the handler for req and converts the outcome into the reply
// message. Unknown actions, handler errors and handler panics all become
// ERROR replies; Dispatch itself never fails, so a worker survives anything
// a handler does.
func (m *Mux) Dispatch(req *Request) (reply *Message) {
	handler, ok := m.handlers[req.Msg.Action]
	if !ok {
		return NewErrorResponse(req.Msg, CodeUnknownAction,
			fmt.Sprintf("service %q has no action %q", req.Msg.Target, req.Msg.Action))
	}

	defer func() {
		if r := recover(); r != nil {
			reply = NewErrorResponse(req.Msg, CodeHandlerPanic, fmt.Sprintf("%v", r))
		}
	}()

	payload, err := handler(req)
	if err != nil {
		var actionErr *ActionError
		if errors.As(err, &actionErr) {
			return NewErrorResponse(req.Msg, actionErr.Code, actionErr.Reason)
		}
		return NewErrorResponse(req.Msg, CodeHandlerError, err.Error())
	}

	return NewResponse(req.Msg, payload)
}
