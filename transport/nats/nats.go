// Package nats provides the NATS Core sink for maestro lifecycle events.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/maestro/transport"
)

// SinkName is the name used to register this sink.
const SinkName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(SinkName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:       url,
			Marshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
