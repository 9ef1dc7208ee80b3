package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/maestro/internal/runtime/config"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	eventspkg "github.com/drblury/maestro/internal/runtime/events"
	idspkg "github.com/drblury/maestro/internal/runtime/ids"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	mailboxpkg "github.com/drblury/maestro/internal/runtime/mailbox"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
)

// Supervisor owns the full lifecycle of every service unit: the one trusted
// path for starting, stopping, restarting and calling them. All registry
// mutations flow through it.
type Supervisor struct {
	conf    *configpkg.Config
	log     loggingpkg.ServiceLogger
	reg     *Registry
	stats   *statspkg.Store
	events  *EventPublisher
	metrics *FleetMetrics
	sampler *resourceTracker
	hooks   LifecycleHooks

	mu      sync.Mutex
	units   map[string]*workerUnit
	pending map[string]chan *protocolpkg.Message

	// specs keeps the WorkerSpec of every registration, surviving a failed
	// or dead unit so a restart always has a real mux to spawn with.
	specs map[string]WorkerSpec
	// restarts serializes the restart path per service name.
	restarts map[string]*sync.Mutex
}

// NewSupervisor wires a supervisor over the shared registry, statistics
// store and event publisher. The hooks are merged into every started
// service's own hooks.
func NewSupervisor(conf *configpkg.Config, log loggingpkg.ServiceLogger, reg *Registry, stats *statspkg.Store, events *EventPublisher, metrics *FleetMetrics, hooks LifecycleHooks) *Supervisor {
	return &Supervisor{
		conf:     conf,
		log:      log,
		reg:      reg,
		stats:    stats,
		events:   events,
		metrics:  metrics,
		sampler:  newResourceTracker(),
		hooks:    hooks,
		units:    make(map[string]*workerUnit),
		pending:  make(map[string]chan *protocolpkg.Message),
		specs:    make(map[string]WorkerSpec),
		restarts: make(map[string]*sync.Mutex),
	}
}

// StartService registers name, spawns its execution unit and waits for the
// readiness signal (the unit's first heartbeat) up to the startup grace
// period. The service ends up RUNNING, or the unit is torn down and the
// call fails with StartupError.
func (s *Supervisor) StartService(ctx context.Context, name string, spec WorkerSpec) error {
	if name == "" {
		return errspkg.ErrWorkerNameRequired
	}
	if spec.Mux == nil {
		return errspkg.ErrHandlerRequired
	}

	capacity := spec.InboxCapacity
	if capacity <= 0 {
		capacity = s.conf.InboxCapacity
	}
	spec.Hooks = s.hooks.Merge(spec.Hooks)

	inbox := mailboxpkg.New[*protocolpkg.Message](capacity)
	unitID := idspkg.NewUnitID()

	if err := s.reg.Register(name, &ServiceDescriptor{
		Name:      name,
		UnitID:    unitID,
		Status:    StatusStarting,
		StartedAt: time.Now().UTC(),
		Inbox:     inbox,
	}); err != nil {
		inbox.Close()
		return err
	}

	// A stale heartbeat from a previous registration must not count as
	// readiness for this one.
	s.stats.Forget(name)

	wu := &workerUnit{
		name:  name,
		unit:  newUnit(unitID),
		inbox: inbox,
		spec:  spec,
		stats: newCallStats(name, s.sampler),
	}

	s.mu.Lock()
	s.units[name] = wu
	s.specs[name] = spec
	s.mu.Unlock()

	s.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceStarted, SourceSupervisor, eventspkg.ServiceData{
		Service: name,
		UnitID:  unitID,
		Status:  string(StatusStarting),
	}))

	if err := s.spawnAndAwaitReady(ctx, wu); err != nil {
		s.mu.Lock()
		delete(s.units, name)
		s.mu.Unlock()
		// STARTING to DEAD covers startup failure; the dead entry can be
		// replaced by a fresh Register.
		_ = s.reg.UpdateStatus(name, StatusDead)
		inbox.Close()
		return err
	}

	s.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceReady, SourceSupervisor, eventspkg.ServiceData{
		Service: name,
		UnitID:  unitID,
		Status:  string(StatusRunning),
	}))
	s.log.Info("Service started", loggingpkg.LogFields{
		"service": name,
		"unit_id": unitID,
		"actions": spec.Mux.Actions(),
	})
	return nil
}

// spawnAndAwaitReady launches the worker goroutine and blocks until its
// first heartbeat, the grace period or the caller's context, whichever
// comes first. On success the service is RUNNING.
func (s *Supervisor) spawnAndAwaitReady(ctx context.Context, wu *workerUnit) error {
	ready := make(chan struct{})
	go s.runWorker(wu, ready)

	grace := s.conf.StartupGrace
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		wu.unit.Kill()
		return errspkg.StartupError{
			Name:  wu.name,
			Cause: fmt.Errorf("no heartbeat within %s", grace),
		}
	case <-ctx.Done():
		wu.unit.Kill()
		return errspkg.StartupError{Name: wu.name, Cause: ctx.Err()}
	}

	if err := s.reg.UpdateStatus(wu.name, StatusRunning); err != nil {
		wu.unit.Kill()
		return err
	}
	if wu.spec.Hooks.OnReady != nil {
		wu.spec.Hooks.OnReady(wu.name)
	}
	return nil
}

// StopService stops name and transitions it to STOPPED. Graceful delivers
// the shutdown signal and waits up to the drain timeout before force
// killing; non-graceful kills immediately. Stopping a dead or already
// stopped registration just removes it.
func (s *Supervisor) StopService(ctx context.Context, name string, graceful bool) error {
	d, ok := s.reg.Get(name)
	if !ok {
		return errspkg.ServiceNotFoundError{Name: name}
	}

	s.mu.Lock()
	wu := s.units[name]
	delete(s.units, name)
	s.mu.Unlock()

	if wu == nil || !d.Status.Live() {
		// No unit left behind this registration; drop the entry.
		s.reg.Deregister(name)
		s.forgetService(name)
		return nil
	}

	if graceful {
		wu.unit.Stop()
		timer := time.NewTimer(s.conf.DrainTimeout)
		select {
		case <-wu.unit.Done():
			timer.Stop()
		case <-timer.C:
			s.log.Info("Drain timeout expired, killing unit", loggingpkg.LogFields{
				"service": name,
				"unit_id": wu.unit.id,
			})
			wu.unit.Kill()
		case <-ctx.Done():
			timer.Stop()
			wu.unit.Kill()
		}
	} else {
		wu.unit.Kill()
	}

	if err := s.reg.UpdateStatus(name, StatusStopped); err != nil {
		return err
	}
	wu.inbox.Close()

	s.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceStopped, SourceSupervisor, eventspkg.ServiceData{
		Service:    name,
		UnitID:     wu.unit.id,
		Status:     string(StatusStopped),
		PrevStatus: string(d.Status),
	}))
	if wu.spec.Hooks.OnStop != nil {
		wu.spec.Hooks.OnStop(name)
	}
	s.log.Info("Service stopped", loggingpkg.LogFields{
		"service":  name,
		"graceful": graceful,
	})
	return nil
}

// RestartService kills the current unit (presumed unresponsive) and spawns
// a fresh one under the same registration, using the WorkerSpec retained at
// StartService. Refused with RestartLimitExceededError once the count would
// exceed the ceiling; the service stays DEAD. Restarts of the same name are
// serialized so a monitor auto-restart and an operator restart cannot both
// spawn a unit for one registration.
func (s *Supervisor) RestartService(ctx context.Context, name string) error {
	lock := s.restartLock(name)
	lock.Lock()
	defer lock.Unlock()

	// Read the descriptor under the restart lock: a restart that just
	// finished has already bumped the count this ceiling check must see.
	d, ok := s.reg.Get(name)
	if !ok {
		return errspkg.ServiceNotFoundError{Name: name}
	}
	if d.RestartCount >= s.conf.MaxRestarts {
		return errspkg.RestartLimitExceededError{Name: name, Limit: s.conf.MaxRestarts}
	}

	s.mu.Lock()
	old := s.units[name]
	delete(s.units, name)
	spec, hasSpec := s.specs[name]
	s.mu.Unlock()

	if old != nil {
		old.unit.Kill()
		old.inbox.Close()
	}

	// A registration without a retained spec has nothing safe to spawn; a
	// worker with no mux would panic on its first dispatch.
	if !hasSpec || spec.Mux == nil {
		return errspkg.ErrWorkerSpecUnavailable
	}

	if d.Status != StatusDead {
		if err := s.reg.UpdateStatus(name, StatusDead); err != nil {
			return err
		}
	}
	if err := s.reg.UpdateStatus(name, StatusStarting); err != nil {
		return err
	}

	count, err := s.reg.RecordRestart(name)
	if err != nil {
		return err
	}

	inbox := mailboxpkg.New[*protocolpkg.Message](s.inboxCapacityFor(spec))
	unitID := idspkg.NewUnitID()
	if err := s.reg.rebind(name, unitID, inbox, time.Now().UTC()); err != nil {
		inbox.Close()
		return err
	}
	s.stats.Forget(name)

	wu := &workerUnit{
		name:  name,
		unit:  newUnit(unitID),
		inbox: inbox,
		spec:  spec,
		stats: newCallStats(name, s.sampler),
	}

	s.mu.Lock()
	s.units[name] = wu
	s.mu.Unlock()

	if err := s.spawnAndAwaitReady(ctx, wu); err != nil {
		s.mu.Lock()
		delete(s.units, name)
		s.mu.Unlock()
		_ = s.reg.UpdateStatus(name, StatusDead)
		inbox.Close()
		return err
	}

	s.metrics.IncRestart(name)
	s.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceRestarted, SourceSupervisor, eventspkg.ServiceData{
		Service:      name,
		UnitID:       unitID,
		Status:       string(StatusRunning),
		RestartCount: count,
	}))
	if wu.spec.Hooks.OnRestart != nil {
		wu.spec.Hooks.OnRestart(name, count)
	}
	s.log.Info("Service restarted", loggingpkg.LogFields{
		"service":       name,
		"unit_id":       unitID,
		"restart_count": count,
	})
	return nil
}

func (s *Supervisor) inboxCapacityFor(spec WorkerSpec) int {
	if spec.InboxCapacity > 0 {
		return spec.InboxCapacity
	}
	return s.conf.InboxCapacity
}

// Call is the synchronous inter-service call primitive: build a REQUEST,
// register a waiter keyed by the correlation id, send to the target's
// inbox, block until the reply or the timeout. A zero timeout uses the
// configured default.
func (s *Supervisor) Call(ctx context.Context, source, target, action string, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = s.conf.CallTimeout
	}

	start := time.Now()
	tracer := otel.Tracer("maestro.supervisor")
	ctx, span := tracer.Start(ctx, "maestro.call",
		trace.WithAttributes(
			attribute.String("maestro.source", source),
			attribute.String("maestro.target", target),
			attribute.String("maestro.action", action),
		))
	defer span.End()

	s.mu.Lock()
	wu := s.units[target]
	s.mu.Unlock()

	d, ok := s.reg.Get(target)
	if wu == nil || !ok || !d.Status.Live() {
		s.metrics.ObserveCall(CallOutcomeNotFound, time.Since(start))
		return nil, errspkg.ServiceNotFoundError{Name: target}
	}

	msg, err := protocolpkg.NewRequest(source, target, action, payload)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("maestro.correlation_id", msg.CorrelationID))

	waiter := make(chan *protocolpkg.Message, 1)
	s.mu.Lock()
	s.pending[msg.CorrelationID] = waiter
	s.mu.Unlock()

	if err := wu.inbox.Send(msg); err != nil {
		s.retirePending(msg.CorrelationID)
		if errors.Is(err, mailboxpkg.ErrOverflow) {
			s.stats.Incr("calls.overflow", 1)
			s.metrics.IncOverflow()
			s.metrics.ObserveCall(CallOutcomeOverflow, time.Since(start))
			s.events.emit(ctx, eventspkg.NewOverflowEvent(SourceSupervisor, eventspkg.OverflowData{
				Service:  target,
				Capacity: wu.inbox.Cap(),
				Source:   source,
				Action:   action,
			}))
			return nil, errspkg.QueueOverflowError{Service: target, Capacity: wu.inbox.Cap()}
		}
		return nil, errspkg.ServiceNotFoundError{Name: target}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-waiter:
		elapsed := time.Since(start)
		if reply.Kind == protocolpkg.KindError {
			s.stats.Incr("calls.error", 1)
			s.metrics.ObserveCall(CallOutcomeError, elapsed)
			return nil, errspkg.ServiceCallError{
				Service: target,
				Action:  action,
				Code:    reply.Code,
				Reason:  reply.Reason,
			}
		}
		s.stats.Incr("calls.ok", 1)
		s.metrics.ObserveCall(CallOutcomeOK, elapsed)
		return reply.Payload, nil

	case <-timer.C:
		s.retirePending(msg.CorrelationID)
		s.stats.Incr("calls.timeout", 1)
		s.metrics.ObserveCall(CallOutcomeTimeout, time.Since(start))
		s.events.emit(ctx, eventspkg.NewCallTimeoutEvent(SourceSupervisor, eventspkg.CallData{
			Source:        source,
			Target:        target,
			Action:        action,
			CorrelationID: msg.CorrelationID,
			TimeoutMs:     timeout.Milliseconds(),
		}))
		return nil, errspkg.ServiceTimeoutError{Service: target, Action: action, Timeout: timeout}

	case <-ctx.Done():
		s.retirePending(msg.CorrelationID)
		s.metrics.ObserveCall(CallOutcomeTimeout, time.Since(start))
		return nil, ctx.Err()
	}
}

// deliverReply routes a reply to the waiter registered for its correlation
// id. A reply arriving after its waiter was retired is discarded and
// counted, never delivered to an unrelated call.
func (s *Supervisor) deliverReply(reply *protocolpkg.Message) {
	s.mu.Lock()
	waiter, ok := s.pending[reply.CorrelationID]
	if ok {
		delete(s.pending, reply.CorrelationID)
	}
	s.mu.Unlock()

	if !ok {
		s.stats.Incr("calls.late_replies", 1)
		s.log.Debug("Discarding late reply", loggingpkg.LogFields{
			"correlation_id": reply.CorrelationID,
			"source":         reply.Source,
		})
		return
	}
	waiter <- reply
}

func (s *Supervisor) retirePending(correlationID string) {
	s.mu.Lock()
	delete(s.pending, correlationID)
	s.mu.Unlock()
}

// callerFor binds the calling service's name as the source of every Call a
// handler makes through its Request.
func (s *Supervisor) callerFor(source string) protocolpkg.Caller {
	return callerFunc(func(ctx context.Context, target, action string, payload map[string]any) (map[string]any, error) {
		return s.Call(ctx, source, target, action, payload, 0)
	})
}

type callerFunc func(ctx context.Context, target, action string, payload map[string]any) (map[string]any, error)

func (f callerFunc) Call(ctx context.Context, target, action string, payload map[string]any) (map[string]any, error) {
	return f(ctx, target, action, payload)
}

// unitAlive reports whether the execution unit behind name is still
// running. Used by the monitor's liveness check.
func (s *Supervisor) unitAlive(name string) bool {
	s.mu.Lock()
	wu := s.units[name]
	s.mu.Unlock()
	return wu != nil && wu.unit.Alive()
}

// killUnit is the out-of-band hard stop on a service's unit, exposed for
// the monitor and for tests simulating external death.
func (s *Supervisor) killUnit(name string) bool {
	s.mu.Lock()
	wu := s.units[name]
	s.mu.Unlock()
	if wu == nil {
		return false
	}
	wu.unit.Kill()
	return true
}

// callStats returns a detached copy of the per-service statistics.
func (s *Supervisor) callStats(name string) (CallStats, bool) {
	s.mu.Lock()
	wu := s.units[name]
	s.mu.Unlock()
	if wu == nil {
		return CallStats{}, false
	}
	return wu.stats.snapshot(), true
}

// StopAll gracefully stops every live service, used during shutdown.
func (s *Supervisor) StopAll(ctx context.Context) {
	for _, d := range s.reg.List() {
		if !d.Status.Live() {
			continue
		}
		if err := s.StopService(ctx, d.Name, true); err != nil {
			s.log.Error("Failed to stop service during shutdown", err, loggingpkg.LogFields{
				"service": d.Name,
			})
		}
	}
}

func (s *Supervisor) forgetService(name string) {
	s.mu.Lock()
	delete(s.specs, name)
	s.mu.Unlock()
	s.stats.Forget(name)
	s.metrics.ForgetService(name)
}

// restartLock returns the mutex serializing restarts of name, creating it
// on first use. Locks are kept for the process lifetime; the set of names
// is bounded by the fleet.
func (s *Supervisor) restartLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.restarts[name]
	if !ok {
		lock = &sync.Mutex{}
		s.restarts[name] = lock
	}
	return lock
}

// fleetCounts groups the registry snapshot by status for the services gauge.
func (s *Supervisor) fleetCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, d := range s.reg.List() {
		counts[d.Status]++
	}
	return counts
}
