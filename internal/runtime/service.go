package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/maestro/internal/runtime/config"
	eventspkg "github.com/drblury/maestro/internal/runtime/events"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
	transportpkg "github.com/drblury/maestro/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// RuntimeDependencies holds the optional collaborators a Runtime can use.
// Leave fields zero to get the defaults.
type RuntimeDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	Hooks                     LifecycleHooks           // Merged into every started service's hooks.
	TransportRegistry         *transportpkg.Registry   // Sink registry for event egress; defaults to the global one.
	Registerer                prometheus.Registerer    // Metrics registerer; defaults to the Prometheus default.
}

// Runtime wires the registry, statistics store, supervisor, monitor,
// lifecycle event bus and introspection surface into one container.
type Runtime struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry   *Registry
	stats      *statspkg.Store
	events     *EventPublisher
	metrics    *FleetMetrics
	supervisor *Supervisor
	monitor    *Monitor

	busPublisher  message.Publisher
	busSubscriber message.Subscriber
	router        *message.Router

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// TryNewRuntime constructs a Runtime for the supplied configuration,
// returning any wiring failure. Start services on the returned Runtime and
// then call Run.
func TryNewRuntime(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps RuntimeDependencies) (*Runtime, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		log = defaultLogger(conf)
	}
	wmLogger := loggingpkg.NewWatermillAdapter(log)

	log.Info("Creating maestro runtime", loggingpkg.LogFields{
		"event_sink": conf.EventSink,
		"config":     conf,
	})

	rt := &Runtime{
		Conf:     conf,
		Logger:   log,
		registry: NewRegistry(),
		stats:    statspkg.NewStore(),
		metrics:  NewFleetMetrics(deps.Registerer),
	}

	bus := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	rt.busPublisher = bus
	rt.busSubscriber = bus
	rt.events = newEventPublisher(bus, log)

	hooks := deps.Hooks
	rt.supervisor = NewSupervisor(conf, log, rt.registry, rt.stats, rt.events, rt.metrics, hooks)
	rt.monitor = NewMonitor(conf, log, rt.supervisor, rt.registry, rt.stats, rt.events, rt.metrics)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	rt.router = router
	rt.router.AddPlugin(plugin.SignalsHandler)

	if err := rt.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	if sink := conf.EventSink; sink != "" && sink != "channel" {
		registry := deps.TransportRegistry
		if registry == nil {
			registry = transportpkg.DefaultRegistry
		}
		egress, err := registry.Build(ctx, conf, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to build event sink %q: %w", sink, err)
		}
		rt.registerEgressForwarder(egress.Publisher)
	}

	if err := rt.metrics.Register(); err != nil {
		return nil, err
	}
	rt.startIntrospection()

	return rt, nil
}

// NewRuntime is TryNewRuntime for callers that treat wiring failure as
// fatal. It panics on error.
func NewRuntime(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps RuntimeDependencies) *Runtime {
	rt, err := TryNewRuntime(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return rt
}

func defaultLogger(conf *configpkg.Config) loggingpkg.ServiceLogger {
	level := slog.LevelInfo
	if conf != nil {
		switch conf.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return loggingpkg.NewSlogServiceLogger(slog.New(handler))
}

func (rt *Runtime) registerConfiguredMiddlewares(deps RuntimeDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := rt.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Run starts the health monitor, the HTTP servers and the event router,
// blocking until the provided context is cancelled.
func (rt *Runtime) Run(ctx context.Context) error {
	go rt.monitor.Run(ctx)
	rt.startHTTPServers()
	return routerRun(rt.router, ctx)
}

// Shutdown gracefully stops every live service, then closes the event
// router. The context bounds the per-service drain indirectly through the
// configured drain timeout.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.Logger.Info("Shutting down runtime", nil)
	rt.supervisor.StopAll(ctx)
	return rt.router.Close()
}

// StartService spawns and registers a service under name.
func (rt *Runtime) StartService(ctx context.Context, name string, spec WorkerSpec) error {
	return rt.supervisor.StartService(ctx, name, spec)
}

// StopService stops a service, gracefully unless graceful is false.
func (rt *Runtime) StopService(ctx context.Context, name string, graceful bool) error {
	return rt.supervisor.StopService(ctx, name, graceful)
}

// RestartService manually restarts a service, subject to the same restart
// ceiling the monitor honors.
func (rt *Runtime) RestartService(ctx context.Context, name string) error {
	return rt.supervisor.RestartService(ctx, name)
}

// Call dispatches a request to a service and waits for the reply. A zero
// timeout uses the configured default.
func (rt *Runtime) Call(ctx context.Context, source, target, action string, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	return rt.supervisor.Call(ctx, source, target, action, payload, timeout)
}

// KillUnit hard-stops a service's execution unit without going through the
// lifecycle API, simulating external death. The monitor picks up the corpse
// on its next sweep. Returns false for an unknown service.
func (rt *Runtime) KillUnit(name string) bool {
	return rt.supervisor.killUnit(name)
}

// PublishEvent puts a custom lifecycle event onto the bus.
func (rt *Runtime) PublishEvent(ctx context.Context, evt eventspkg.Event) error {
	return rt.events.Publish(ctx, evt)
}

// Sweep triggers one monitor pass outside the timer, used by tests and
// operational tooling.
func (rt *Runtime) Sweep(ctx context.Context) {
	rt.monitor.Sweep(ctx)
}

// RegisterHTTPHandler accumulates an HTTP handler on the mux for the given
// port. The servers start when Run is called.
func (rt *Runtime) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	rt.httpServersMu.Lock()
	defer rt.httpServersMu.Unlock()

	if rt.httpServers == nil {
		rt.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := rt.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		rt.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (rt *Runtime) startHTTPServers() {
	rt.httpServersMu.Lock()
	defer rt.httpServersMu.Unlock()

	for port, mux := range rt.httpServers {
		addr := fmt.Sprintf(":%d", port)
		rt.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				rt.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
