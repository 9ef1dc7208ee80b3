// Package channel provides the in-memory Go channel sink for maestro.
// It is the default: lifecycle events stay on the in-process bus, available
// to in-process handlers, with no external broker involved.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/maestro/transport"
)

// SinkName is the name used to register this sink.
const SinkName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	transport.RegisterWithCapabilities(SinkName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
