package metadata

// Reserved metadata keys stamped on lifecycle events by the runtime.
// Custom metadata should not reuse them.
const (
	// KeyCorrelationID tracks related events across the fleet.
	KeyCorrelationID = "correlation_id"

	// KeyEventType carries the lifecycle event type, e.g. "service.dead".
	KeyEventType = "event_type"

	// KeyService names the supervised service an event concerns.
	KeyService = "maestro_service"

	// KeyUnitID identifies the worker goroutine behind the event.
	KeyUnitID = "maestro_unit_id"

	// KeyTraceID stores the distributed tracing ID.
	KeyTraceID = "trace_id"

	// KeySpanID stores the distributed tracing span ID.
	KeySpanID = "span_id"
)
