// Package maestro is a process-based service-orchestration runtime: a
// supervisor that spawns services as isolated execution units, a registry
// tracking their lifecycle, a message plane for request/reply calls over
// bounded inboxes, and a health monitor that degrades, declares dead and
// restarts services based on heartbeats.
//
// Services are plain action handlers registered on a protocol mux. The
// supervisor is the single trusted path for starting, stopping, restarting
// and calling them; every REQUEST produces exactly one RESPONSE or ERROR,
// or the caller's wait times out. Lifecycle transitions are published as
// CloudEvents-shaped events on an in-process Watermill bus and can be
// forwarded to an external sink (NATS, JetStream, Kafka, RabbitMQ, AWS
// SNS/SQS, HTTP webhooks, or a JSON-lines file) selected through Config.
//
// # Supervision
//
// Each service runs a worker loop over its own bounded mailbox, writing a
// heartbeat into the shared statistics store every cycle. The monitor
// sweeps the fleet on a fixed interval: heartbeats older than the slow
// threshold degrade a service, older than the dead threshold (or a gone
// unit) declare it dead, and auto-restart revives it up to a configured
// ceiling. A service past its ceiling stays dead and visible.
//
// # Calls
//
// Runtime.Call builds a correlated REQUEST, delivers it to the target's
// inbox and blocks until the reply or a timeout. Full inboxes reject with
// QueueOverflowError, error replies surface as ServiceCallError, and late
// replies after a timeout are discarded, never misdelivered. Handlers can
// call other services through the Caller bound to their request.
//
// # Observability
//
// The runtime exposes Prometheus fleet metrics, per-service call
// statistics with latency percentiles, a JSON introspection endpoint, and
// OpenTelemetry spans around calls and handler execution. See the gateway
// package for the REST surface and the examples directory for runnable
// setups.
package maestro
