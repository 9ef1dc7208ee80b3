// Package jetstream provides the NATS JetStream sink for maestro lifecycle
// events. Unlike the core NATS sink it persists the forwarded stream, so
// consumers that connect late still see every lifecycle transition.
package jetstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/maestro/transport"
)

// SinkName is the name used to register this sink.
const SinkName = "nats-jetstream"

const (
	// DefaultMaxDeliver is the default max delivery attempts.
	DefaultMaxDeliver = 3

	// DefaultAckWait is the default ack wait timeout.
	DefaultAckWait = 30 * time.Second
)

// ConnectFactory allows overriding the NATS connection for testing.
var ConnectFactory = nats.Connect

func init() {
	transport.RegisterWithCapabilities(SinkName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a new NATS JetStream sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{URL: cfg.GetNATSURL()}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  t,
		Subscriber: t,
	}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds NATS JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the name of the JetStream stream to use.
	// If empty, defaults to "MAESTRO".
	StreamName string

	// MaxDeliver is the maximum number of delivery attempts.
	MaxDeliver int

	// AckWait is the duration to wait for acknowledgment.
	AckWait time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int

	// MaxAge bounds how long events are retained. Defaults to a week.
	MaxAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = "MAESTRO"
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	return c
}

// Sink implements Publisher and Subscriber over NATS JetStream.
type Sink struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	subscriptions map[string]*nats.Subscription
	subMu         sync.Mutex

	closed     bool
	closedMu   sync.RWMutex
	closedChan chan struct{}
}

// New creates a new JetStream sink, connecting to the server and ensuring
// the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Sink, error) {
	cfg = cfg.withDefaults()

	nc, err := ConnectFactory(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &Sink{
		nc:            nc,
		js:            js,
		config:        cfg,
		logger:        logger,
		subscriptions: make(map[string]*nats.Subscription),
		closedChan:    make(chan struct{}),
	}

	if err := s.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return s, nil
}

func (s *Sink) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      s.config.StreamName,
		Subjects:  []string{s.config.StreamName + ".>"},
		MaxAge:    s.config.MaxAge,
		Replicas:  s.config.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := s.js.AddStream(streamCfg); err != nil {
		if _, err := s.js.UpdateStream(streamCfg); err != nil && s.logger != nil {
			s.logger.Info("JetStream stream exists", watermill.LogFields{
				"stream": s.config.StreamName,
			})
		}
	}

	return nil
}

// Publish publishes events to the JetStream stream.
func (s *Sink) Publish(topic string, messages ...*message.Message) error {
	s.closedMu.RLock()
	if s.closed {
		s.closedMu.RUnlock()
		return fmt.Errorf("sink is closed")
	}
	s.closedMu.RUnlock()

	subject := s.topicToSubject(topic)

	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		headers.Set("ms_message_uuid", msg.UUID)

		natsMsg := &nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		}

		if _, err := s.js.PublishMsg(natsMsg); err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to a topic and returns a channel of messages.
func (s *Sink) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.closedMu.RLock()
	if s.closed {
		s.closedMu.RUnlock()
		return nil, fmt.Errorf("sink is closed")
	}
	s.closedMu.RUnlock()

	subject := s.topicToSubject(topic)
	consumerName := s.topicToConsumer(topic)
	output := make(chan *message.Message)

	consumerCfg := &nats.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    s.config.MaxDeliver,
		AckWait:       s.config.AckWait,
		DeliverPolicy: nats.DeliverAllPolicy,
	}

	if _, err := s.js.AddConsumer(s.config.StreamName, consumerCfg); err != nil {
		if _, err := s.js.UpdateConsumer(s.config.StreamName, consumerCfg); err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := s.js.PullSubscribe(subject, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s.subMu.Lock()
	s.subscriptions[topic] = sub
	s.subMu.Unlock()

	go s.fetchMessages(ctx, sub, output, topic)

	return output, nil
}

func (s *Sink) fetchMessages(ctx context.Context, sub *nats.Subscription, output chan<- *message.Message, topic string) {
	defer close(output)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closedChan:
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			if s.logger != nil {
				s.logger.Error("Failed to fetch messages", err, watermill.LogFields{
					"topic": topic,
				})
			}
			continue
		}

		for _, natsMsg := range msgs {
			wmMsg := s.natsToWatermill(natsMsg)

			select {
			case output <- wmMsg:
				select {
				case <-wmMsg.Acked():
					if err := natsMsg.Ack(); err != nil && s.logger != nil {
						s.logger.Error("Failed to ack", err, nil)
					}
				case <-wmMsg.Nacked():
					if err := natsMsg.Nak(); err != nil && s.logger != nil {
						s.logger.Error("Failed to nak", err, nil)
					}
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Sink) natsToWatermill(natsMsg *nats.Msg) *message.Message {
	msgID := natsMsg.Header.Get("ms_message_uuid")
	if msgID == "" {
		msgID = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	wmMsg := message.NewMessage(msgID, natsMsg.Data)

	for k, v := range natsMsg.Header {
		if len(v) > 0 {
			wmMsg.Metadata.Set(k, v[0])
		}
	}

	return wmMsg
}

func (s *Sink) topicToSubject(topic string) string {
	return s.config.StreamName + "." + topic
}

func (s *Sink) topicToConsumer(topic string) string {
	return "consumer_" + topic
}

// Close closes the JetStream sink.
func (s *Sink) Close() error {
	s.closedMu.Lock()
	if s.closed {
		s.closedMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closedChan)
	s.closedMu.Unlock()

	s.subMu.Lock()
	for _, sub := range s.subscriptions {
		sub.Unsubscribe()
	}
	s.subscriptions = make(map[string]*nats.Subscription)
	s.subMu.Unlock()

	s.nc.Close()

	return nil
}

// GetCapabilities returns the JetStream sink capabilities.
func (s *Sink) GetCapabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}
