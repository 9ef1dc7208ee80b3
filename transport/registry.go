package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// Registry maintains a mapping of sink names to their builders and
// capabilities. Sink packages register themselves using Register.
type Registry struct {
	mu           sync.RWMutex
	builders     map[string]Builder
	capabilities map[string]Capabilities
}

// DefaultRegistry is the global sink registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new sink registry.
func NewRegistry() *Registry {
	return &Registry{
		builders:     make(map[string]Builder),
		capabilities: make(map[string]Capabilities),
	}
}

// Register adds a sink builder to the registry.
// The name should match the EventSink config value (e.g., "kafka", "rabbitmq").
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// RegisterWithCapabilities adds a sink builder and its capabilities to the registry.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
	r.capabilities[name] = caps
}

// GetCapabilities returns the capabilities for a registered sink.
// Returns a zero Capabilities struct if the sink is unknown.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Build creates a sink using the registered builder for the config's
// EventSink. An empty sink name falls back to the in-process channel sink.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	name := cfg.GetEventSink()
	if name == "" {
		name = "channel"
	}

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return Transport{}, fmt.Errorf("unknown event sink: %q (registered: %v)", name, r.Names())
	}

	return builder(ctx, cfg, logger)
}

// Names returns the list of registered sink names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if a sink is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a sink builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a sink builder and its capabilities to the default registry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Build creates a sink using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
