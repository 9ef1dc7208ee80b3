/*
Package runtime provides the core service-orchestration infrastructure for
maestro.

# Architecture Overview

The runtime package implements a supervised, message-driven service fleet.
Every service is an isolated execution unit with its own bounded inbox;
the supervisor is the one trusted path for starting, stopping, restarting
and calling services, and a health monitor keeps the fleet honest through
heartbeats.

# Package Structure

The runtime package is organized into the following components:

## Runtime Container (service.go)

The Runtime struct is the central orchestrator that wires together:
  - Service registry and shared statistics store
  - Supervisor and health monitor
  - Lifecycle event bus (Watermill) with optional external egress
  - Middleware chain on the event router
  - HTTP servers for metrics and fleet introspection

## Supervision (supervisor.go, worker.go, registry.go, monitor.go)

The supervisor owns every unit's lifecycle: StartService spawns a worker
and waits for its readiness heartbeat, StopService drains or kills it,
RestartService revives dead units under the restart ceiling, and Call is
the synchronous request/reply primitive with correlation-id matching. The
monitor sweeps heartbeat freshness and unit liveness on a fixed interval,
degrading, declaring dead and auto-restarting through the supervisor API.

## Middleware (middleware.go)

The event router's composable processing stages:
  - CorrelationID: Ensures event traceability
  - LogEvents: Debug logging of routed events
  - Tracer: OpenTelemetry distributed tracing
  - Metrics: Prometheus metrics collection
  - Retry: Exponential backoff retry logic
  - Recoverer: Panic recovery

## Stats & Monitoring (callstats.go, resources.go, fleet_metrics.go)

Per-service processing statistics with latency percentiles (p50, p95,
p99), throughput tracking, error breakdowns by wire code and resource
usage sampling, plus Prometheus collectors for the whole fleet.

## Introspection (introspect.go)

HTTP API and Runtime methods for inspecting fleet and per-service health.

# Sub-packages

  - config/: Runtime configuration with validation
  - errors/: Sentinel errors and typed lifecycle errors
  - events/: CloudEvents-shaped lifecycle event envelope
  - protocol/: Message envelope, action mux and typed handlers
  - mailbox/: Bounded FIFO mailbox
  - stats/: Shared counters and heartbeat records
  - ids/: ULID generation
  - codec/: sonic JSON codec and payload helpers
  - logging/: Logger interface and adapters
  - metadata/: Bus metadata utilities

# Usage Example

	cfg := config.Default()

	rt, err := runtime.TryNewRuntime(cfg, logger, ctx, runtime.RuntimeDependencies{})
	if err != nil {
		return err
	}

	mux := protocol.NewMux()
	mux.Handle("ping", func(req *protocol.Request) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	})

	rt.StartService(ctx, "echo", runtime.WorkerSpec{Mux: mux})
	rt.Run(ctx)
*/
package runtime
