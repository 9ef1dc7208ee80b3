package runtime

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	codecpkg "github.com/drblury/maestro/internal/runtime/codec"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	eventspkg "github.com/drblury/maestro/internal/runtime/events"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	metadatapkg "github.com/drblury/maestro/internal/runtime/metadata"
)

// LifecycleTopic is the bus topic every lifecycle event is published on.
// The egress forwarder and in-process handlers both subscribe to it.
const LifecycleTopic = "maestro.lifecycle"

// Event sources stamped by the runtime components.
const (
	SourceSupervisor = "maestro/supervisor"
	SourceMonitor    = "maestro/monitor"
)

// EventPublisher puts lifecycle events onto the bus, stamping the watermill
// metadata the forwarder and handlers filter on.
type EventPublisher struct {
	publisher message.Publisher
	log       loggingpkg.ServiceLogger
}

func newEventPublisher(publisher message.Publisher, log loggingpkg.ServiceLogger) *EventPublisher {
	return &EventPublisher{publisher: publisher, log: log}
}

// Publish marshals the event and publishes it on the lifecycle topic.
func (p *EventPublisher) Publish(ctx context.Context, evt eventspkg.Event) error {
	if p == nil || p.publisher == nil {
		return errspkg.ErrPublisherRequired
	}

	payload, err := codecpkg.Marshal(evt)
	if err != nil {
		return err
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set(metadatapkg.KeyEventType, evt.Type)
	if evt.Subject != nil {
		msg.Metadata.Set(metadatapkg.KeyService, *evt.Subject)
	}
	if unitID := eventspkg.GetUnitID(evt); unitID != "" {
		msg.Metadata.Set(metadatapkg.KeyUnitID, unitID)
	}
	if correlationID := eventspkg.GetCorrelationID(evt); correlationID != "" {
		msg.Metadata.Set(metadatapkg.KeyCorrelationID, correlationID)
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}

	return p.publisher.Publish(LifecycleTopic, msg)
}

// emit is the fire-and-forget variant for the supervisor and the monitor:
// supervision must not fail because telemetry did.
func (p *EventPublisher) emit(ctx context.Context, evt eventspkg.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		p.log.Error("Failed to publish lifecycle event", err, loggingpkg.LogFields{
			"event_type": evt.Type,
		})
	}
}

// EventHandlerRegistration attaches an in-process consumer to the lifecycle
// stream. An empty Types slice receives every event.
type EventHandlerRegistration struct {
	Name    string
	Types   []string
	Handler func(ctx context.Context, evt eventspkg.Event) error
}

// RegisterEventHandler adds an in-process lifecycle event handler to the
// runtime's router. Must be called before Run.
func RegisterEventHandler(rt *Runtime, reg EventHandlerRegistration) error {
	if rt == nil {
		return errspkg.ErrRuntimeRequired
	}
	if reg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if reg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}

	wanted := make(map[string]bool, len(reg.Types))
	for _, t := range reg.Types {
		wanted[t] = true
	}

	rt.router.AddNoPublisherHandler(
		reg.Name,
		LifecycleTopic,
		rt.busSubscriber,
		func(msg *message.Message) error {
			var evt eventspkg.Event
			if err := codecpkg.Unmarshal(msg.Payload, &evt); err != nil {
				rt.Logger.Error("Failed to decode lifecycle event", err, loggingpkg.LogFields{
					"handler":      reg.Name,
					"message_uuid": msg.UUID,
				})
				// Undecodable events are dropped, not retried.
				return nil
			}
			if len(wanted) > 0 && !wanted[evt.Type] {
				return nil
			}
			return reg.Handler(msg.Context(), evt)
		},
	)
	return nil
}

// registerEgressForwarder adds the router handler that republishes every
// lifecycle event from the in-process bus to the configured external sink.
func (rt *Runtime) registerEgressForwarder(egress message.Publisher) {
	rt.router.AddHandler(
		"lifecycle_egress",
		LifecycleTopic,
		rt.busSubscriber,
		LifecycleTopic,
		egress,
		func(msg *message.Message) ([]*message.Message, error) {
			forwarded := message.NewMessage(msg.UUID, msg.Payload)
			for key, value := range msg.Metadata {
				forwarded.Metadata.Set(key, value)
			}
			return []*message.Message{forwarded}, nil
		},
	)
}
