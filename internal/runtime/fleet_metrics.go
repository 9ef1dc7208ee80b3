package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcome labels for the maestro_fleet_calls_total counter.
const (
	CallOutcomeOK       = "ok"
	CallOutcomeError    = "error"
	CallOutcomeTimeout  = "timeout"
	CallOutcomeOverflow = "overflow"
	CallOutcomeNotFound = "not_found"
)

// FleetMetrics tracks supervision statistics for the whole fleet.
type FleetMetrics struct {
	mu sync.Mutex

	services       *prometheus.GaugeVec
	restartsTotal  *prometheus.CounterVec
	requestsTotal  *prometheus.CounterVec
	callsTotal     *prometheus.CounterVec
	heartbeatAge   *prometheus.GaugeVec
	overflowsTotal prometheus.Counter
	callDuration   prometheus.Histogram

	registerer prometheus.Registerer
	registered bool
}

// newFleetCounterVec creates a counter vec with the standard maestro/fleet namespace.
func newFleetCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Subsystem: "fleet",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newFleetGaugeVec creates a gauge vec with the standard maestro/fleet namespace.
func newFleetGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "maestro",
			Subsystem: "fleet",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewFleetMetrics creates the fleet metrics collectors. A nil registerer
// falls back to the Prometheus default.
func NewFleetMetrics(registerer prometheus.Registerer) *FleetMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FleetMetrics{
		registerer:    registerer,
		services:      newFleetGaugeVec("services", "Number of registered services by lifecycle status", []string{"status"}),
		restartsTotal: newFleetCounterVec("restarts_total", "Total number of service restarts", []string{"service"}),
		requestsTotal: newFleetCounterVec("requests_total", "Total number of requests dispatched by workers", []string{"service", "action"}),
		callsTotal:    newFleetCounterVec("calls_total", "Total number of inter-service calls by outcome", []string{"outcome"}),
		heartbeatAge:  newFleetGaugeVec("heartbeat_age_seconds", "Age of the most recent heartbeat per service", []string{"service"}),
		overflowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maestro",
			Subsystem: "fleet",
			Name:      "inbox_overflows_total",
			Help:      "Total number of sends rejected by a full inbox",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maestro",
			Subsystem: "fleet",
			Name:      "call_duration_seconds",
			Help:      "Duration of inter-service calls",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *FleetMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.services,
		m.restartsTotal,
		m.requestsTotal,
		m.callsTotal,
		m.heartbeatAge,
		m.overflowsTotal,
		m.callDuration,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveFleet replaces the per-status service gauge with the given counts.
// Statuses absent from the map are reset to zero so departed services do
// not linger.
func (m *FleetMetrics) ObserveFleet(counts map[Status]int) {
	if m == nil {
		return
	}
	for _, status := range []Status{StatusStarting, StatusRunning, StatusDegraded, StatusDead, StatusStopped} {
		m.services.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// IncRestart counts one restart of the named service.
func (m *FleetMetrics) IncRestart(service string) {
	if m == nil {
		return
	}
	m.restartsTotal.WithLabelValues(service).Inc()
}

// IncRequest counts one request dispatched by a worker.
func (m *FleetMetrics) IncRequest(service, action string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(service, action).Inc()
}

// ObserveCall counts one inter-service call and its duration.
func (m *FleetMetrics) ObserveCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(outcome).Inc()
	m.callDuration.Observe(duration.Seconds())
}

// SetHeartbeatAge records the current heartbeat age of a service.
func (m *FleetMetrics) SetHeartbeatAge(service string, age time.Duration) {
	if m == nil {
		return
	}
	m.heartbeatAge.WithLabelValues(service).Set(age.Seconds())
}

// ForgetService drops per-service series after a deregistration.
func (m *FleetMetrics) ForgetService(service string) {
	if m == nil {
		return
	}
	m.heartbeatAge.DeleteLabelValues(service)
}

// IncOverflow counts one send rejected by a full inbox.
func (m *FleetMetrics) IncOverflow() {
	if m == nil {
		return
	}
	m.overflowsTotal.Inc()
}

// Reset resets all label vectors (useful for testing).
func (m *FleetMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services.Reset()
	m.restartsTotal.Reset()
	m.requestsTotal.Reset()
	m.callsTotal.Reset()
	m.heartbeatAge.Reset()
}
