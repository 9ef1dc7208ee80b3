package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/maestro/internal/runtime/config"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
)

// capturePublisher records published messages per topic so tests can assert
// on emitted lifecycle events without a running router.
type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{messages: make(map[string][]*message.Message)}
}

func (p *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*message.Message, len(p.messages[topic]))
	copy(out, p.messages[topic])
	return out
}

// eventTypes lists the event_type metadata of everything published on the
// lifecycle topic, in order.
func (p *capturePublisher) eventTypes() []string {
	msgs := p.published(LifecycleTopic)
	types := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		types = append(types, msg.Metadata.Get("event_type"))
	}
	return types
}

func (p *capturePublisher) hasEventType(eventType string) bool {
	for _, t := range p.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

func testConfig() *configpkg.Config {
	conf := configpkg.Default()
	conf.StartupGrace = 2 * time.Second
	conf.DrainTimeout = time.Second
	conf.CallTimeout = 2 * time.Second
	conf.InboxCapacity = 16
	conf.MaxRestarts = 3
	conf.AutoRestart = false
	conf.CheckInterval = 50 * time.Millisecond
	conf.SlowThreshold = time.Second
	conf.DeadThreshold = time.Hour
	return conf
}

type testFixture struct {
	conf    *configpkg.Config
	reg     *Registry
	stats   *statspkg.Store
	bus     *capturePublisher
	metrics *FleetMetrics
	sup     *Supervisor
	mon     *Monitor
}

func newTestFixture(t *testing.T, conf *configpkg.Config) *testFixture {
	t.Helper()
	if conf == nil {
		conf = testConfig()
	}

	log := loggingpkg.Nop()
	reg := NewRegistry()
	store := statspkg.NewStore()
	bus := newCapturePublisher()
	events := newEventPublisher(bus, log)
	metrics := NewFleetMetrics(prometheus.NewRegistry())
	sup := NewSupervisor(conf, log, reg, store, events, metrics, LifecycleHooks{})
	mon := NewMonitor(conf, log, sup, reg, store, events, metrics)

	return &testFixture{
		conf:    conf,
		reg:     reg,
		stats:   store,
		bus:     bus,
		metrics: metrics,
		sup:     sup,
		mon:     mon,
	}
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}
