// Package transport defines the core interfaces and types for maestro event
// sinks. A sink is the external destination lifecycle events are forwarded
// to. Each sink implementation (kafka, rabbitmq, aws, etc.) lives in its own
// sub-package and registers itself with the sink registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines the publisher and subscriber pair produced by a builder.
// Event egress only uses the publisher; the subscriber side lets a sink
// double as an event source for tooling that tails the forwarded stream.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a sink from config.
// Each sink package provides a Builder function that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by sinks.
// This interface allows sinks to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetEventSink returns the selected sink name.
	GetEventSink() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS (core and JetStream)
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by sinks that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
