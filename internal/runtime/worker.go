package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	mailboxpkg "github.com/drblury/maestro/internal/runtime/mailbox"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
)

// workerPollInterval bounds how long one worker cycle blocks on its inbox.
// Each expiry writes a heartbeat and re-checks the shutdown signals, so the
// interval is also the worst-case latency for observing a stop or a kill.
const workerPollInterval = 200 * time.Millisecond

// WorkerSpec is what a service author supplies to StartService: the action
// mux the worker dispatches through, optional lifecycle hooks, and an
// optional inbox capacity overriding the configured default.
type WorkerSpec struct {
	Mux           *protocolpkg.Mux
	Hooks         LifecycleHooks
	InboxCapacity int
}

// unit is the opaque handle for one execution unit. The supervisor, the
// monitor and tests interact with a running worker only through it: Alive
// for liveness, Kill for the out-of-band hard stop, stop for the graceful
// shutdown signal.
type unit struct {
	id string

	stopOnce sync.Once
	stop     chan struct{}
	killOnce sync.Once
	kill     chan struct{}
	done     chan struct{}
}

func newUnit(id string) *unit {
	return &unit{
		id:   id,
		stop: make(chan struct{}),
		kill: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Alive reports whether the unit's loop is still running.
func (u *unit) Alive() bool {
	select {
	case <-u.done:
		return false
	default:
		return true
	}
}

// Stop delivers the graceful shutdown signal. The loop finishes the message
// in flight and exits on its next cycle. Idempotent.
func (u *unit) Stop() {
	u.stopOnce.Do(func() { close(u.stop) })
}

// Kill is the hard stop used by force-stop, restart and tests simulating
// external death. The loop exits on its next cycle without draining.
func (u *unit) Kill() {
	u.killOnce.Do(func() { close(u.kill) })
}

// Done is closed when the loop has exited.
func (u *unit) Done() <-chan struct{} {
	return u.done
}

// workerUnit bundles everything the supervisor tracks per running service.
type workerUnit struct {
	name  string
	unit  *unit
	inbox *mailboxpkg.Mailbox[*protocolpkg.Message]
	spec  WorkerSpec
	stats *CallStats
}

// runWorker is the processing loop every unit executes: timed receive on
// the inbox, heartbeat each cycle, shutdown check each iteration, dispatch
// through the mux, reply delivery through the supervisor. The first
// heartbeat doubles as the readiness signal. A panic inside a handler is
// recovered by the mux and answered as an ERROR reply; nothing a handler
// does escapes the unit.
func (s *Supervisor) runWorker(wu *workerUnit, ready chan<- struct{}) {
	u := wu.unit
	defer close(u.done)

	log := s.log.With(loggingpkg.LogFields{
		"service": wu.name,
		"unit_id": u.id,
	})

	if wu.spec.Hooks.OnStart != nil {
		wu.spec.Hooks.OnStart(wu.name)
	}

	s.stats.Beat(wu.name)
	close(ready)

	tracer := otel.Tracer("maestro.worker")
	caller := s.callerFor(wu.name)

	for {
		select {
		case <-u.kill:
			log.Debug("Worker killed", nil)
			return
		case <-u.stop:
			log.Debug("Worker stopping", nil)
			return
		default:
		}

		msg, err := wu.inbox.ReceiveTimeout(workerPollInterval)
		if err != nil {
			if errors.Is(err, mailboxpkg.ErrTimeout) {
				s.stats.Beat(wu.name)
				continue
			}
			// Inbox closed underneath us; the supervisor is tearing the
			// service down.
			return
		}

		s.stats.BeatWithAction(wu.name, msg.Action)
		s.handleMessage(wu, tracer, caller, log, msg)
	}
}

func (s *Supervisor) handleMessage(wu *workerUnit, tracer trace.Tracer, caller protocolpkg.Caller, log loggingpkg.ServiceLogger, msg *protocolpkg.Message) {
	if msg.IsReply() {
		// Replies are routed through the pending-call table, never through
		// inboxes. A stray one is dropped.
		s.stats.Incr("messages.stray_replies", 1)
		log.Debug("Discarding stray reply", loggingpkg.LogFields{
			"correlation_id": msg.CorrelationID,
		})
		return
	}

	ctx, span := tracer.Start(context.Background(), "maestro.worker.handle",
		trace.WithAttributes(
			attribute.String("maestro.service", wu.name),
			attribute.String("maestro.action", msg.Action),
			attribute.String("maestro.correlation_id", msg.CorrelationID),
		))
	defer span.End()

	if wu.spec.Hooks.OnMessage != nil {
		wu.spec.Hooks.OnMessage(wu.name, msg)
	}

	start := time.Now()
	reply := wu.spec.Mux.Dispatch(&protocolpkg.Request{
		Ctx:    ctx,
		Msg:    msg,
		Logger: log,
		Caller: caller,
	})
	elapsed := time.Since(start)

	errCode := ""
	if reply.Kind == protocolpkg.KindError {
		errCode = reply.Code
		span.SetAttributes(attribute.String("maestro.error_code", reply.Code))
		if wu.spec.Hooks.OnError != nil {
			wu.spec.Hooks.OnError(wu.name, msg, &protocolpkg.ActionError{
				Code:   reply.Code,
				Reason: reply.Reason,
			})
		}
	}

	wu.stats.record(msg.Action, elapsed, errCode)
	s.metrics.IncRequest(wu.name, msg.Action)
	s.deliverReply(reply)
}
