package maestro

import (
	runtimepkg "github.com/drblury/maestro/internal/runtime"
	codecpkg "github.com/drblury/maestro/internal/runtime/codec"
	configpkg "github.com/drblury/maestro/internal/runtime/config"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	eventspkg "github.com/drblury/maestro/internal/runtime/events"
	idspkg "github.com/drblury/maestro/internal/runtime/ids"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	mailboxpkg "github.com/drblury/maestro/internal/runtime/mailbox"
	metadatapkg "github.com/drblury/maestro/internal/runtime/metadata"
	protocolpkg "github.com/drblury/maestro/internal/runtime/protocol"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
	transportpkg "github.com/drblury/maestro/transport"
	"google.golang.org/protobuf/proto"
)

type (
	Config              = configpkg.Config
	Runtime             = runtimepkg.Runtime
	RuntimeDependencies = runtimepkg.RuntimeDependencies
	WorkerSpec          = runtimepkg.WorkerSpec
	LifecycleHooks      = runtimepkg.LifecycleHooks

	Status            = runtimepkg.Status
	ServiceDescriptor = runtimepkg.ServiceDescriptor
	ServiceSummary    = runtimepkg.ServiceSummary
	ServiceHealth     = runtimepkg.ServiceHealth
	CallStats         = runtimepkg.CallStats
	ResourceUsage     = runtimepkg.ResourceUsage
	FleetMetrics      = runtimepkg.FleetMetrics

	Message     = protocolpkg.Message
	Kind        = protocolpkg.Kind
	Request     = protocolpkg.Request
	Caller      = protocolpkg.Caller
	HandlerFunc = protocolpkg.HandlerFunc
	ActionError = protocolpkg.ActionError
	Mux         = protocolpkg.Mux

	Mailbox[T any] = mailboxpkg.Mailbox[T]

	HeartbeatRecord = statspkg.HeartbeatRecord
	StatsStore      = statspkg.Store

	Event       = eventspkg.Event
	ServiceData = eventspkg.ServiceData
	CallData    = eventspkg.CallData

	EventHandlerRegistration = runtimepkg.EventHandlerRegistration

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError     = errspkg.ConfigValidationError
	DuplicateServiceError     = errspkg.DuplicateServiceError
	ServiceNotFoundError      = errspkg.ServiceNotFoundError
	InvalidTransitionError    = errspkg.InvalidTransitionError
	StartupError              = errspkg.StartupError
	RestartLimitExceededError = errspkg.RestartLimitExceededError
	ServiceTimeoutError       = errspkg.ServiceTimeoutError
	ServiceCallError          = errspkg.ServiceCallError
	QueueOverflowError        = errspkg.QueueOverflowError

	// Transport registry types
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
	Transport             = transportpkg.Transport
)

// Lifecycle statuses.
const (
	StatusStarting = runtimepkg.StatusStarting
	StatusRunning  = runtimepkg.StatusRunning
	StatusDegraded = runtimepkg.StatusDegraded
	StatusDead     = runtimepkg.StatusDead
	StatusStopped  = runtimepkg.StatusStopped
)

// Wire kinds and error codes of the message protocol.
const (
	KindRequest  = protocolpkg.KindRequest
	KindResponse = protocolpkg.KindResponse
	KindError    = protocolpkg.KindError

	CodeUnknownAction = protocolpkg.CodeUnknownAction
	CodeHandlerError  = protocolpkg.CodeHandlerError
	CodeHandlerPanic  = protocolpkg.CodeHandlerPanic
	CodeBadPayload    = protocolpkg.CodeBadPayload
)

// Lifecycle event types.
const (
	TypeServiceStarted          = eventspkg.TypeServiceStarted
	TypeServiceReady            = eventspkg.TypeServiceReady
	TypeServiceDegraded         = eventspkg.TypeServiceDegraded
	TypeServiceRecovered        = eventspkg.TypeServiceRecovered
	TypeServiceDead             = eventspkg.TypeServiceDead
	TypeServiceRestarted        = eventspkg.TypeServiceRestarted
	TypeServiceStopped          = eventspkg.TypeServiceStopped
	TypeServiceRestartExhausted = eventspkg.TypeServiceRestartExhausted
	TypeCallTimeout             = eventspkg.TypeCallTimeout
	TypeInboxOverflow           = eventspkg.TypeInboxOverflow

	LifecycleTopic = runtimepkg.LifecycleTopic
)

// Reserved bus metadata keys.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyEventType     = metadatapkg.KeyEventType
	MetadataKeyService       = metadatapkg.KeyService
	MetadataKeyUnitID        = metadatapkg.KeyUnitID
	MetadataKeyTraceID       = metadatapkg.KeyTraceID
	MetadataKeySpanID        = metadatapkg.KeySpanID
)

var (
	NewRuntime     = runtimepkg.NewRuntime
	TryNewRuntime  = runtimepkg.TryNewRuntime
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewMux           = protocolpkg.NewMux
	NewRequest       = protocolpkg.NewRequest
	NewResponse      = protocolpkg.NewResponse
	NewErrorResponse = protocolpkg.NewErrorResponse
	Errorf           = protocolpkg.Errorf

	NewMetadata = metadatapkg.New

	RegisterEventHandler = runtimepkg.RegisterEventHandler

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogEventsMiddleware     = runtimepkg.LogEventsMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	LoggingHooks    = runtimepkg.LoggingHooks
	NewFleetMetrics = runtimepkg.NewFleetMetrics

	// CloudEvents constructors and helpers
	NewEvent           = eventspkg.New
	NewServiceEvent    = eventspkg.NewServiceEvent
	GetCorrelationID   = eventspkg.GetCorrelationID
	SetCorrelationID   = eventspkg.SetCorrelationID
	GetService         = eventspkg.GetService
	GetUnitID          = eventspkg.GetUnitID
	GetRestartCount    = eventspkg.GetRestartCount
	CopyTracingContext = eventspkg.CopyTracingContext

	// Logging constructors
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	// IDs
	NewCorrelationID = idspkg.NewCorrelationID
	NewUnitID        = idspkg.NewUnitID
	NewEventID       = idspkg.NewEventID

	// Transport registry
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	Marshal       = codecpkg.Marshal
	MarshalIndent = codecpkg.MarshalIndent
	Unmarshal     = codecpkg.Unmarshal
	Encode        = codecpkg.Encode
	Decode        = codecpkg.Decode

	ErrRuntimeRequired       = errspkg.ErrRuntimeRequired
	ErrHandlerRequired       = errspkg.ErrHandlerRequired
	ErrWorkerNameRequired    = errspkg.ErrWorkerNameRequired
	ErrActionNameRequired    = errspkg.ErrActionNameRequired
	ErrTargetRequired        = errspkg.ErrTargetRequired
	ErrWorkerSpecUnavailable = errspkg.ErrWorkerSpecUnavailable
)

// Typed adapts a strongly typed action handler into a HandlerFunc. The
// request payload is decoded into In and the returned Out is encoded back
// into the reply payload.
func Typed[In any, Out any](fn func(req *Request, in In) (Out, error)) HandlerFunc {
	return protocolpkg.Typed(fn)
}

// ProtoHandler adapts a handler taking a protobuf request message.
func ProtoHandler[T proto.Message](fn func(req *Request, in T) (map[string]any, error)) HandlerFunc {
	return protocolpkg.Proto(fn)
}
