package errors

import (
	"fmt"
	"time"
)

// DuplicateServiceError is returned when a name is registered while a live
// unit (starting, running or degraded) still owns it.
type DuplicateServiceError struct {
	Name   string
	Status string
}

func (e DuplicateServiceError) Error() string {
	return fmt.Sprintf("maestro: service %q already registered with status %s", e.Name, e.Status)
}

// ServiceNotFoundError is returned when an operation names a service the
// registry has never seen.
type ServiceNotFoundError struct {
	Name string
}

func (e ServiceNotFoundError) Error() string {
	return fmt.Sprintf("maestro: service %q not found", e.Name)
}

// InvalidTransitionError is returned when a status update is not an edge of
// the lifecycle state machine.
type InvalidTransitionError struct {
	Name string
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("maestro: service %q cannot transition from %s to %s", e.Name, e.From, e.To)
}

// StartupError is returned when a spawned unit does not report ready within
// the startup grace period.
type StartupError struct {
	Name  string
	Cause error
}

func (e StartupError) Error() string {
	return fmt.Sprintf("maestro: service %q failed to start: %v", e.Name, e.Cause)
}

func (e StartupError) Unwrap() error {
	return e.Cause
}

// RestartLimitExceededError is returned when a restart would push a service
// past its configured ceiling.
type RestartLimitExceededError struct {
	Name  string
	Limit int
}

func (e RestartLimitExceededError) Error() string {
	return fmt.Sprintf("maestro: service %q exceeded restart limit of %d", e.Name, e.Limit)
}

// ServiceTimeoutError is returned when a call receives no response before
// its deadline. The correlation ID is retired; a late reply is discarded.
type ServiceTimeoutError struct {
	Service string
	Action  string
	Timeout time.Duration
}

func (e ServiceTimeoutError) Error() string {
	return fmt.Sprintf("maestro: call to %s.%s timed out after %s", e.Service, e.Action, e.Timeout)
}

// ServiceCallError is returned when the target service answered a call with
// an error response instead of a result.
type ServiceCallError struct {
	Service string
	Action  string
	Code    string
	Reason  string
}

func (e ServiceCallError) Error() string {
	return fmt.Sprintf("maestro: call to %s.%s failed: %s: %s", e.Service, e.Action, e.Code, e.Reason)
}

// QueueOverflowError is returned when a send would exceed the capacity of
// the target service's inbox.
type QueueOverflowError struct {
	Service  string
	Capacity int
}

func (e QueueOverflowError) Error() string {
	return fmt.Sprintf("maestro: inbox for service %q is full (capacity %d)", e.Service, e.Capacity)
}
