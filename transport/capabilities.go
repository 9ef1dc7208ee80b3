package transport

// Capabilities describes the delivery features supported by a sink backend.
// Use this to introspect what guarantees the forwarded event stream has at
// runtime.
type Capabilities struct {
	// SupportsOrdering indicates the sink preserves event ordering.
	// When true, events within a partition/stream arrive in publish order.
	SupportsOrdering bool

	// SupportsTracing indicates the sink propagates tracing headers natively.
	SupportsTracing bool

	// SupportsBatching indicates the sink can batch multiple events.
	SupportsBatching bool

	// SupportsAck indicates the sink supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the sink supports negative acknowledgment
	// (redelivery).
	SupportsNack bool

	// SupportsPartitioning indicates the sink supports partitioned delivery.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum event size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the sink.
	Name string

	// Version is the sink/driver version.
	Version string
}

// SupportsReliableDelivery returns true if the sink supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the built-in sinks.
var (
	// ChannelCapabilities for the in-memory Go channel sink.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for the Apache Kafka sink.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsTracing:      true,
		SupportsBatching:     true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP sink.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for the NATS Core sink.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream sink.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// AWSCapabilities for the AWS SNS/SQS sink.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   262144, // 256KB
	}

	// HTTPCapabilities for the webhook push sink.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	// IOCapabilities for the append-only file sink.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a sink by name.
// Uses the registry to look up capabilities registered by each sink package.
// Returns a zero Capabilities struct if the sink is unknown.
func GetCapabilities(sinkName string) Capabilities {
	return DefaultRegistry.GetCapabilities(sinkName)
}
