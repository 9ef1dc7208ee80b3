package runtime

import (
	"sync"
	"time"

	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	mailboxpkg "github.com/drblury/maestro/internal/runtime/mailbox"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
)

// Status is the lifecycle state of a registered service.
type Status string

const (
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
	StatusDegraded Status = "DEGRADED"
	StatusDead     Status = "DEAD"
	StatusStopped  Status = "STOPPED"
)

// Live reports whether the status marks a registration that still owns its
// name. Dead and stopped entries can be replaced by a fresh Register.
func (s Status) Live() bool {
	return s == StatusStarting || s == StatusRunning || s == StatusDegraded
}

// ServiceDescriptor is the registry's identity record for one service. The
// registry owns every descriptor; callers receive copies and mutate state
// only through registry operations.
type ServiceDescriptor struct {
	Name         string    `json:"name"`
	UnitID       string    `json:"unitId"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"startedAt"`
	RestartCount int       `json:"restartCount"`

	Inbox *mailboxpkg.Mailbox[*protocolpkg.Message] `json:"-"`
}

// transitions is the lifecycle state machine. A missing edge is an illegal
// transition; STOPPED is terminal for a registration.
var transitions = map[Status][]Status{
	StatusStarting: {StatusRunning, StatusDead, StatusStopped},
	StatusRunning:  {StatusDegraded, StatusDead, StatusStopped},
	StatusDegraded: {StatusRunning, StatusDead, StatusStopped},
	StatusDead:     {StatusStarting},
	StatusStopped:  {},
}

func transitionAllowed(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Registry tracks every registered service. One mutex serializes all
// operations; descriptors never escape without being copied first.
type Registry struct {
	mu       sync.Mutex
	services map[string]*ServiceDescriptor
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*ServiceDescriptor)}
}

// Register claims name for the given descriptor. A live registration under
// the same name is rejected with DuplicateServiceError; a dead or stopped
// entry is replaced.
func (r *Registry) Register(name string, d *ServiceDescriptor) error {
	if name == "" {
		return errspkg.ErrWorkerNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.services[name]; ok && existing.Status.Live() {
		return errspkg.DuplicateServiceError{Name: name, Status: string(existing.Status)}
	}

	entry := *d
	entry.Name = name
	r.services[name] = &entry
	return nil
}

// Deregister removes the entry for name. Removing an unknown name is a no-op.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Get returns a copy of the descriptor for name.
func (r *Registry) Get(name string) (*ServiceDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.services[name]
	if !ok {
		return nil, false
	}
	entry := *d
	return &entry, true
}

// List returns snapshot copies of every descriptor. The snapshot is not kept
// current; callers re-read instead of caching.
func (r *Registry) List() []*ServiceDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*ServiceDescriptor, 0, len(r.services))
	for _, d := range r.services {
		entry := *d
		out = append(out, &entry)
	}
	return out
}

// UpdateStatus moves name to next along the state machine. Updating to the
// current status is a no-op; an edge the machine does not have fails with
// InvalidTransitionError.
func (r *Registry) UpdateStatus(name string, next Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.services[name]
	if !ok {
		return errspkg.ServiceNotFoundError{Name: name}
	}
	if d.Status == next {
		return nil
	}
	if !transitionAllowed(d.Status, next) {
		return errspkg.InvalidTransitionError{Name: name, From: string(d.Status), To: string(next)}
	}

	d.Status = next
	return nil
}

// RecordRestart increments the restart count for name and returns the new
// value. The count never resets for the lifetime of a registration.
func (r *Registry) RecordRestart(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.services[name]
	if !ok {
		return 0, errspkg.ServiceNotFoundError{Name: name}
	}
	d.RestartCount++
	return d.RestartCount, nil
}

// rebind points an existing registration at a fresh execution unit. Used by
// the restart path after the old unit was killed.
func (r *Registry) rebind(name, unitID string, inbox *mailboxpkg.Mailbox[*protocolpkg.Message], startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.services[name]
	if !ok {
		return errspkg.ServiceNotFoundError{Name: name}
	}
	d.UnitID = unitID
	d.Inbox = inbox
	d.StartedAt = startedAt
	return nil
}
