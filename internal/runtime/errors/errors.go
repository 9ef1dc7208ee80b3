package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrRuntimeRequired      = sterrors.New("maestro: runtime is required")
	ErrHandlerRequired      = sterrors.New("maestro: handler function is required")
	ErrHandlerNameRequired  = sterrors.New("maestro: handler name is required")
	ErrTopicRequired        = sterrors.New("maestro: topic is required")
	ErrEventTypeRequired    = sterrors.New("maestro: event message type is required")
	ErrEventPointerRequired = sterrors.New("maestro: event message type must be a pointer")
	ErrEventPayloadRequired = sterrors.New("maestro: event payload is required")
	ErrPublisherRequired    = sterrors.New("maestro: publisher is required")
	ErrConfigRequired       = sterrors.New("maestro: configuration is required")
	ErrLoggerRequired       = sterrors.New("maestro: logger is required")
	ErrWorkerNameRequired   = sterrors.New("maestro: worker name is required")
	ErrActionNameRequired   = sterrors.New("maestro: action name is required")
	ErrTargetRequired       = sterrors.New("maestro: target service is required")

	// ErrWorkerSpecUnavailable means a restart was asked for a service whose
	// worker spec is no longer retained, so there is nothing safe to spawn.
	ErrWorkerSpecUnavailable = sterrors.New("maestro: no worker spec retained for service")
)

// ConfigValidationError wraps the issues found while validating a Config,
// keeping the original errors reachable through Unwrap.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("maestro: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil so validation code
// can return its result unconditionally.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
