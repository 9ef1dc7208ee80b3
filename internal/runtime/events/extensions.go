package events

// Runtime extension keys for lifecycle events. These extensions carry
// supervision semantics alongside the CloudEvents core attributes.
const (
	// ExtService names the supervised service the event concerns.
	ExtService = "ms_service"

	// ExtUnitID identifies the worker goroutine behind the event.
	ExtUnitID = "ms_unit_id"

	// ExtStatus is the service status after the occurrence.
	ExtStatus = "ms_status"

	// ExtRestartCount is the number of restarts the service has consumed.
	ExtRestartCount = "ms_restart_count"

	// ExtCorrelationID ties an event back to the call that produced it.
	ExtCorrelationID = "ms_correlation_id"

	// ExtTraceID is the distributed trace ID (W3C traceparent compatible).
	ExtTraceID = "ms_trace_id"

	// ExtParentID is the parent span ID for trace correlation.
	ExtParentID = "ms_parent_id"
)

// GetService returns the supervised service name, empty if unset.
func GetService(evt Event) string {
	return evt.GetExtensionString(ExtService)
}

// SetService names the supervised service the event concerns.
func SetService(evt *Event, service string) {
	setExtension(evt, ExtService, service)
}

// GetUnitID returns the worker unit ID, empty if unset.
func GetUnitID(evt Event) string {
	return evt.GetExtensionString(ExtUnitID)
}

// SetUnitID records the worker unit behind the event.
func SetUnitID(evt *Event, unitID string) {
	setExtension(evt, ExtUnitID, unitID)
}

// GetStatus returns the recorded service status, empty if unset.
func GetStatus(evt Event) string {
	return evt.GetExtensionString(ExtStatus)
}

// SetStatus records the service status after the occurrence.
func SetStatus(evt *Event, status string) {
	setExtension(evt, ExtStatus, status)
}

// GetRestartCount returns the recorded restart count.
func GetRestartCount(evt Event) int {
	return evt.GetExtensionInt(ExtRestartCount)
}

// SetRestartCount records how many restarts the service has consumed.
func SetRestartCount(evt *Event, n int) {
	setExtension(evt, ExtRestartCount, n)
}

// GetCorrelationID returns the correlation ID, empty if unset.
func GetCorrelationID(evt Event) string {
	return evt.GetExtensionString(ExtCorrelationID)
}

// SetCorrelationID ties the event to the call that produced it.
func SetCorrelationID(evt *Event, correlationID string) {
	setExtension(evt, ExtCorrelationID, correlationID)
}

// GetTraceID returns the distributed trace ID.
func GetTraceID(evt Event) string {
	return evt.GetExtensionString(ExtTraceID)
}

// SetTraceID sets the distributed trace ID.
func SetTraceID(evt *Event, traceID string) {
	setExtension(evt, ExtTraceID, traceID)
}

// GetParentID returns the parent span ID.
func GetParentID(evt Event) string {
	return evt.GetExtensionString(ExtParentID)
}

// SetParentID sets the parent span ID.
func SetParentID(evt *Event, parentID string) {
	setExtension(evt, ExtParentID, parentID)
}

// CopyTracingContext copies tracing extensions from source to destination.
func CopyTracingContext(src Event, dst *Event) {
	if traceID := GetTraceID(src); traceID != "" {
		SetTraceID(dst, traceID)
	}
	if parentID := GetParentID(src); parentID != "" {
		SetParentID(dst, parentID)
	}
	if correlationID := GetCorrelationID(src); correlationID != "" {
		SetCorrelationID(dst, correlationID)
	}
}

func setExtension(evt *Event, key string, value any) {
	if evt.Extensions == nil {
		evt.Extensions = make(map[string]any)
	}
	evt.Extensions[key] = value
}
