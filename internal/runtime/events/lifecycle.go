package events

// Lifecycle event types emitted by the runtime. The supervisor emits the
// start/stop/restart family, the monitor emits the health family, and the
// message plane emits call.timeout and inbox.overflow.
const (
	TypeServiceStarted   = "service.started"
	TypeServiceReady     = "service.ready"
	TypeServiceDegraded  = "service.degraded"
	TypeServiceRecovered = "service.recovered"
	TypeServiceDead      = "service.dead"
	TypeServiceRestarted = "service.restarted"
	TypeServiceStopped   = "service.stopped"

	// TypeServiceRestartExhausted marks a dead service whose restart
	// ceiling is spent; the monitor will not revive it again.
	TypeServiceRestartExhausted = "service.restart_exhausted"

	TypeCallTimeout   = "call.timeout"
	TypeInboxOverflow = "inbox.overflow"
)

// ContentTypeJSON is the data content type stamped on lifecycle events.
const ContentTypeJSON = "application/json"

// ServiceData is the data payload carried by service.* events.
type ServiceData struct {
	Service      string `json:"service"`
	UnitID       string `json:"unitId,omitempty"`
	Status       string `json:"status,omitempty"`
	PrevStatus   string `json:"prevStatus,omitempty"`
	RestartCount int    `json:"restartCount,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// CallData is the data payload carried by call.timeout events.
type CallData struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	Action        string `json:"action"`
	CorrelationID string `json:"correlationId"`
	TimeoutMs     int64  `json:"timeoutMs"`
}

// OverflowData is the data payload carried by inbox.overflow events.
type OverflowData struct {
	Service  string `json:"service"`
	Capacity int    `json:"capacity"`
	Source   string `json:"source,omitempty"`
	Action   string `json:"action,omitempty"`
}

// NewServiceEvent builds a service.* event with the service as its subject
// and the supervision extensions set.
func NewServiceEvent(eventType, source string, data ServiceData) Event {
	evt := New(eventType, source, data).
		WithSubject(data.Service).
		WithDataContentType(ContentTypeJSON)

	SetService(&evt, data.Service)
	if data.UnitID != "" {
		SetUnitID(&evt, data.UnitID)
	}
	if data.Status != "" {
		SetStatus(&evt, data.Status)
	}
	if data.RestartCount > 0 {
		SetRestartCount(&evt, data.RestartCount)
	}
	return evt
}

// NewCallTimeoutEvent builds a call.timeout event about an unanswered call.
func NewCallTimeoutEvent(source string, data CallData) Event {
	evt := New(TypeCallTimeout, source, data).
		WithSubject(data.Target).
		WithDataContentType(ContentTypeJSON)

	SetService(&evt, data.Target)
	SetCorrelationID(&evt, data.CorrelationID)
	return evt
}

// NewOverflowEvent builds an inbox.overflow event about a rejected send.
func NewOverflowEvent(source string, data OverflowData) Event {
	evt := New(TypeInboxOverflow, source, data).
		WithSubject(data.Service).
		WithDataContentType(ContentTypeJSON)

	SetService(&evt, data.Service)
	return evt
}
