package runtime

import (
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
)

// LifecycleHooks defines callbacks for service lifecycle events.
// All hooks are optional; nil hooks are simply not called. Hooks run inline
// on the supervisor or worker goroutine, so they must return promptly.
type LifecycleHooks struct {
	// OnStart is called inside the fresh unit before its first heartbeat.
	OnStart func(service string)

	// OnReady is called when the service reaches RUNNING.
	OnReady func(service string)

	// OnStop is called after the service reaches STOPPED.
	OnStop func(service string)

	// OnRestart is called after a restart succeeded, with the new count.
	OnRestart func(service string, restartCount int)

	// OnMessage is called before each request is dispatched.
	OnMessage func(service string, msg *protocolpkg.Message)

	// OnError is called when a dispatch produced an ERROR reply.
	OnError func(service string, msg *protocolpkg.Message, err error)
}

// Merge combines two hook sets into one that calls both, the receiver's
// callbacks first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStart:   chainServiceHooks(h.OnStart, other.OnStart),
		OnReady:   chainServiceHooks(h.OnReady, other.OnReady),
		OnStop:    chainServiceHooks(h.OnStop, other.OnStop),
		OnRestart: chainRestartHooks(h.OnRestart, other.OnRestart),
		OnMessage: chainMessageHooks(h.OnMessage, other.OnMessage),
		OnError:   chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainServiceHooks(a, b func(string)) func(string) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(service string) {
		a(service)
		b(service)
	}
}

func chainRestartHooks(a, b func(string, int)) func(string, int) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(service string, count int) {
		a(service, count)
		b(service, count)
	}
}

func chainMessageHooks(a, b func(string, *protocolpkg.Message)) func(string, *protocolpkg.Message) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(service string, msg *protocolpkg.Message) {
		a(service, msg)
		b(service, msg)
	}
}

func chainErrorHooks(a, b func(string, *protocolpkg.Message, error)) func(string, *protocolpkg.Message, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(service string, msg *protocolpkg.Message, err error) {
		a(service, msg, err)
		b(service, msg, err)
	}
}

// LoggingHooks returns pre-built hooks that log service lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) LifecycleHooks {
	return LifecycleHooks{
		OnStart: func(service string) {
			logger.Info("Service starting", loggingpkg.LogFields{"service": service})
		},
		OnReady: func(service string) {
			logger.Info("Service ready", loggingpkg.LogFields{"service": service})
		},
		OnStop: func(service string) {
			logger.Info("Service stopped", loggingpkg.LogFields{"service": service})
		},
		OnRestart: func(service string, count int) {
			logger.Info("Service restarted", loggingpkg.LogFields{
				"service":       service,
				"restart_count": count,
			})
		},
		OnError: func(service string, msg *protocolpkg.Message, err error) {
			logger.Error("Handler error", err, loggingpkg.LogFields{
				"service": service,
				"action":  msg.Action,
			})
		},
	}
}
