// Package http provides a webhook push sink for maestro lifecycle events.
// Events are POSTed to a base URL suffixed with the topic name.
package http

import (
	"context"
	nethttp "net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/maestro/transport"
)

// SinkName is the name used to register this sink.
const SinkName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	transport.RegisterWithCapabilities(SinkName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	serverAddr := cfg.GetHTTPServerAddress()
	publisherURL := cfg.GetHTTPPublisherURL()

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				url := publisherURL + topic
				return http.DefaultMarshalMessageFunc(url, msg)
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		serverAddr,
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
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
	return transport.HTTPCapabilities
}
