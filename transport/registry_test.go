package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock config for testing
type mockConfig struct {
	eventSink string
}

func (m *mockConfig) GetEventSink() string          { return m.eventSink }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return "" }
func (m *mockConfig) GetHTTPServerAddress() string  { return "" }
func (m *mockConfig) GetHTTPPublisherURL() string   { return "" }
func (m *mockConfig) GetIOFile() string             { return "" }
func (m *mockConfig) GetAWSRegion() string          { return "" }
func (m *mockConfig) GetAWSAccountID() string       { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string     { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string { return "" }
func (m *mockConfig) GetAWSEndpoint() string        { return "" }

// Mock publisher and subscriber
type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	return nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg)
	assert.NotNil(t, reg.builders)
	assert.NotNil(t, reg.capabilities)
	assert.Empty(t, reg.Names())
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	reg.Register("test-sink", builder)
	assert.True(t, reg.Has("test-sink"))
	assert.Contains(t, reg.Names(), "test-sink")
}

func TestRegistry_RegisterWithCapabilities(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	caps := Capabilities{
		Name:             "test-sink",
		SupportsOrdering: true,
		SupportsAck:      true,
	}

	reg.RegisterWithCapabilities("test-sink", builder, caps)

	assert.True(t, reg.Has("test-sink"))
	retrievedCaps := reg.GetCapabilities("test-sink")
	assert.Equal(t, "test-sink", retrievedCaps.Name)
	assert.True(t, retrievedCaps.SupportsOrdering)
	assert.True(t, retrievedCaps.SupportsAck)
}

func TestRegistry_GetCapabilities_Unknown(t *testing.T) {
	reg := NewRegistry()
	caps := reg.GetCapabilities("unknown")
	assert.Equal(t, "unknown", caps.Name)
	assert.False(t, caps.SupportsOrdering)
	assert.False(t, caps.SupportsAck)
}

func TestRegistry_Build(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	reg.Register("test-sink", builder)

	cfg := &mockConfig{eventSink: "test-sink"}
	ctx := context.Background()

	sink, err := reg.Build(ctx, cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, sink.Publisher)
	assert.NotNil(t, sink.Subscriber)
}

func TestRegistry_Build_EmptySinkDefaultsToChannel(t *testing.T) {
	reg := NewRegistry()

	var builtName bool
	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		builtName = true
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	reg.Register("channel", builder)

	cfg := &mockConfig{eventSink: ""}
	_, err := reg.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.True(t, builtName)
}

func TestRegistry_Build_NilConfig(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	_, err := reg.Build(ctx, nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestRegistry_Build_UnknownSink(t *testing.T) {
	reg := NewRegistry()
	cfg := &mockConfig{eventSink: "unknown-sink"}
	ctx := context.Background()

	_, err := reg.Build(ctx, cfg, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event sink")
}

func TestRegistry_Build_BuilderError(t *testing.T) {
	reg := NewRegistry()

	expectedErr := errors.New("builder error")
	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, expectedErr
	}

	reg.Register("failing-sink", builder)
	cfg := &mockConfig{eventSink: "failing-sink"}
	ctx := context.Background()

	_, err := reg.Build(ctx, cfg, nil)
	assert.Error(t, err)
	assert.Equal(t, expectedErr, err)
}

func TestRegistry_Has(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, nil
	}

	assert.False(t, reg.Has("test-sink"))

	reg.Register("test-sink", builder)
	assert.True(t, reg.Has("test-sink"))
	assert.False(t, reg.Has("other-sink"))
}

func TestRegistry_Names_Sorted(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{}, nil
	}

	assert.Empty(t, reg.Names())

	reg.Register("zeta", builder)
	reg.Register("alpha", builder)
	reg.Register("mid", builder)

	names := reg.Names()
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			for j := 0; j < 100; j++ {
				reg.Register("sink", builder)
				reg.Has("sink")
				reg.Names()
				reg.GetCapabilities("sink")
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.True(t, reg.Has("sink"))
}

func TestGlobalRegistry(t *testing.T) {
	assert.NotNil(t, DefaultRegistry)
}

func TestBuildWithDefaultRegistry(t *testing.T) {
	cfg := &mockConfig{eventSink: "nonexistent"}
	ctx := context.Background()

	_, err := Build(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestPackageLevelRegister(t *testing.T) {
	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	Register("test-pkg-sink", builder)
	assert.True(t, DefaultRegistry.Has("test-pkg-sink"))
}

func TestPackageLevelRegisterWithCapabilities(t *testing.T) {
	builder := func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
		return Transport{
			Publisher:  &mockPublisher{},
			Subscriber: &mockSubscriber{},
		}, nil
	}

	caps := Capabilities{
		Name:             "test-pkg-caps-sink",
		SupportsBatching: true,
	}

	RegisterWithCapabilities("test-pkg-caps-sink", builder, caps)

	assert.True(t, DefaultRegistry.Has("test-pkg-caps-sink"))
	retrievedCaps := DefaultRegistry.GetCapabilities("test-pkg-caps-sink")
	assert.Equal(t, "test-pkg-caps-sink", retrievedCaps.Name)
	assert.True(t, retrievedCaps.SupportsBatching)
}
