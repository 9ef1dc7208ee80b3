package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	idspkg "github.com/drblury/maestro/internal/runtime/ids"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	metadatapkg "github.com/drblury/maestro/internal/runtime/metadata"
)

// MiddlewareBuilder constructs a handler middleware using the runtime it is
// registered on.
type MiddlewareBuilder func(*Runtime) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on
// the runtime's event router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// RetryMiddlewareConfig customises the retry middleware behaviour.
type RetryMiddlewareConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryIf         func(error) bool
}

func (cfg RetryMiddlewareConfig) withDefaults() RetryMiddlewareConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 16 * time.Second
	}
	return cfg
}

// DefaultMiddlewares returns the standard middleware chain applied to the
// lifecycle event router.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogEventsMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		RetryMiddleware(RetryMiddlewareConfig{}),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds Prometheus metrics to the event router and exposes
// the metrics endpoint when a port is configured.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(rt *Runtime) (message.HandlerMiddleware, error) {
			if !rt.Conf.MetricsEnabled {
				return nil, nil
			}

			metricsBuilder := metrics.NewPrometheusMetricsBuilder(
				prometheus.DefaultRegisterer,
				"maestro",
				"events",
			)

			metricsBuilder.AddPrometheusRouterMetrics(rt.router)

			if rt.Conf.MetricsPort > 0 {
				rt.RegisterHTTPHandler(rt.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}

			return metricsBuilder.NewRouterMiddleware().Middleware, nil
		},
	}
}

// CorrelationIDMiddleware ensures each routed event carries a correlation id.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "correlation_id",
		Builder: func(rt *Runtime) (message.HandlerMiddleware, error) {
			return rt.correlationIDMiddleware(), nil
		},
	}
}

// LogEventsMiddleware logs the payload and metadata of routed events.
func LogEventsMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_events",
		Builder: func(rt *Runtime) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = rt.Logger
			}
			if l == nil {
				return nil, errors.New("log events middleware requires a logger")
			}
			return rt.logEventsMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps event handling in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(rt *Runtime) (message.HandlerMiddleware, error) {
			return rt.tracerMiddleware(), nil
		},
	}
}

// RetryMiddleware retries event handling using the provided configuration.
// Zero values fall back to the runtime's retry tuning, then to the library
// defaults.
func RetryMiddleware(cfg RetryMiddlewareConfig) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "retry",
		Builder: func(rt *Runtime) (message.HandlerMiddleware, error) {
			effective := cfg
			if effective.MaxRetries <= 0 {
				effective.MaxRetries = rt.Conf.RetryMaxRetries
			}
			if effective.InitialInterval <= 0 {
				effective.InitialInterval = rt.Conf.RetryInitialInterval
			}
			if effective.MaxInterval <= 0 {
				effective.MaxInterval = rt.Conf.RetryMaxInterval
			}
			return rt.retryMiddlewareWithConfig(effective), nil
		},
	}
}

// RecovererMiddleware converts handler panics into errors so they can be
// retried instead of taking the router down.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the event router.
func (rt *Runtime) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if rt.router == nil {
		return errors.New("router is not initialised")
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(rt)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	rt.router.AddMiddleware(mw)
	return nil
}

// correlationIDMiddleware injects a correlation id into the event metadata
// when missing.
func (rt *Runtime) correlationIDMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			if _, ok := msg.Metadata[metadatapkg.KeyCorrelationID]; !ok {
				msg.Metadata[metadatapkg.KeyCorrelationID] = idspkg.NewCorrelationID()
			}
			return h(msg)
		}
	}
}

// logEventsMiddleware logs all routed events with their metadata.
func (rt *Runtime) logEventsMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Debug("Routing lifecycle event", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"event_type":   msg.Metadata.Get(metadatapkg.KeyEventType),
				"service":      msg.Metadata.Get(metadatapkg.KeyService),
			})
			return h(msg)
		}
	}
}

func (rt *Runtime) retryMiddlewareWithConfig(cfg RetryMiddlewareConfig) message.HandlerMiddleware {
	normalized := cfg.withDefaults()
	return middleware.Retry{
		MaxRetries:      normalized.MaxRetries,
		InitialInterval: normalized.InitialInterval,
		MaxInterval:     normalized.MaxInterval,
		ShouldRetry: func(params middleware.RetryParams) bool {
			if normalized.RetryIf != nil {
				return normalized.RetryIf(params.Err)
			}
			return true
		},
	}.Middleware
}

// tracerMiddleware wraps event routing with an OpenTelemetry span.
func (rt *Runtime) tracerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			tracer := otel.Tracer("maestro.events")
			ctx, span := tracer.Start(
				msg.Context(),
				"RouteLifecycleEvent",
			)
			defer span.End()
			msg.SetContext(ctx)

			span.SetAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("message.metadata", fmt.Sprintf("%v", msg.Metadata)),
			)
			return h(msg)
		}
	}
}
