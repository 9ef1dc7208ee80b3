package runtime

import (
	"context"
	"errors"
	"time"

	configpkg "github.com/drblury/maestro/internal/runtime/config"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	eventspkg "github.com/drblury/maestro/internal/runtime/events"
	loggingpkg "github.com/drblury/maestro/internal/runtime/logging"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
)

// Monitor sweeps the fleet on a fixed interval, checking unit liveness and
// heartbeat freshness for every RUNNING or DEGRADED service. It never
// touches service internals directly; every change goes through the
// supervisor and registry APIs.
type Monitor struct {
	conf    *configpkg.Config
	log     loggingpkg.ServiceLogger
	sup     *Supervisor
	reg     *Registry
	stats   *statspkg.Store
	events  *EventPublisher
	metrics *FleetMetrics

	clock func() time.Time
}

func NewMonitor(conf *configpkg.Config, log loggingpkg.ServiceLogger, sup *Supervisor, reg *Registry, stats *statspkg.Store, events *EventPublisher, metrics *FleetMetrics) *Monitor {
	return &Monitor{
		conf:    conf,
		log:     log,
		sup:     sup,
		reg:     reg,
		stats:   stats,
		events:  events,
		metrics: metrics,
		clock:   time.Now,
	}
}

// Run sweeps on the configured check interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.conf.CheckInterval)
	defer ticker.Stop()

	m.log.Info("Health monitor started", loggingpkg.LogFields{
		"check_interval": m.conf.CheckInterval.String(),
		"slow_threshold": m.conf.SlowThreshold.String(),
		"dead_threshold": m.conf.DeadThreshold.String(),
		"auto_restart":   m.conf.AutoRestart,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one monitor pass over the fleet.
func (m *Monitor) Sweep(ctx context.Context) {
	now := m.clock()

	for _, d := range m.reg.List() {
		if hb, ok := m.stats.Heartbeat(d.Name); ok {
			m.metrics.SetHeartbeatAge(d.Name, now.Sub(hb.LastBeat))
		}

		if d.Status != StatusRunning && d.Status != StatusDegraded {
			continue
		}
		m.checkService(ctx, d, now)
	}

	m.metrics.ObserveFleet(m.sup.fleetCounts())
}

func (m *Monitor) checkService(ctx context.Context, d *ServiceDescriptor, now time.Time) {
	if !m.sup.unitAlive(d.Name) {
		m.markDead(ctx, d, "execution unit is gone")
		return
	}

	hb, ok := m.stats.Heartbeat(d.Name)
	if !ok {
		// No record means the worker never beat after its registration was
		// refreshed; measure from the unit's start instead.
		hb.LastBeat = d.StartedAt
	}
	age := now.Sub(hb.LastBeat)

	switch {
	case age > m.conf.DeadThreshold:
		m.markDead(ctx, d, "heartbeat older than dead threshold")

	case age > m.conf.SlowThreshold:
		if d.Status == StatusDegraded {
			return
		}
		if err := m.reg.UpdateStatus(d.Name, StatusDegraded); err != nil {
			m.log.Error("Failed to mark service degraded", err, loggingpkg.LogFields{"service": d.Name})
			return
		}
		m.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceDegraded, SourceMonitor, eventspkg.ServiceData{
			Service:    d.Name,
			UnitID:     d.UnitID,
			Status:     string(StatusDegraded),
			PrevStatus: string(d.Status),
			Reason:     "heartbeat older than slow threshold",
		}))
		m.log.Info("Service degraded", loggingpkg.LogFields{
			"service":       d.Name,
			"heartbeat_age": age.String(),
		})

	default:
		if d.Status != StatusDegraded {
			return
		}
		if err := m.reg.UpdateStatus(d.Name, StatusRunning); err != nil {
			m.log.Error("Failed to mark service recovered", err, loggingpkg.LogFields{"service": d.Name})
			return
		}
		m.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceRecovered, SourceMonitor, eventspkg.ServiceData{
			Service:    d.Name,
			UnitID:     d.UnitID,
			Status:     string(StatusRunning),
			PrevStatus: string(StatusDegraded),
		}))
		m.log.Info("Service recovered", loggingpkg.LogFields{"service": d.Name})
	}
}

// markDead transitions the service to DEAD and, when auto-restart is on,
// asks the supervisor to revive it. A restart refusal at the ceiling leaves
// the service DEAD for operator attention and is surfaced as an event.
func (m *Monitor) markDead(ctx context.Context, d *ServiceDescriptor, reason string) {
	if err := m.reg.UpdateStatus(d.Name, StatusDead); err != nil {
		m.log.Error("Failed to mark service dead", err, loggingpkg.LogFields{"service": d.Name})
		return
	}
	m.sup.killUnit(d.Name)

	m.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceDead, SourceMonitor, eventspkg.ServiceData{
		Service:      d.Name,
		UnitID:       d.UnitID,
		Status:       string(StatusDead),
		PrevStatus:   string(d.Status),
		RestartCount: d.RestartCount,
		Reason:       reason,
	}))
	m.log.Error("Service dead", errors.New(reason), loggingpkg.LogFields{
		"service":       d.Name,
		"restart_count": d.RestartCount,
	})

	if !m.conf.AutoRestart {
		return
	}

	err := m.sup.RestartService(ctx, d.Name)
	if err == nil {
		return
	}

	var limitErr errspkg.RestartLimitExceededError
	if errors.As(err, &limitErr) {
		m.events.emit(ctx, eventspkg.NewServiceEvent(eventspkg.TypeServiceRestartExhausted, SourceMonitor, eventspkg.ServiceData{
			Service:      d.Name,
			UnitID:       d.UnitID,
			Status:       string(StatusDead),
			RestartCount: d.RestartCount,
			Reason:       err.Error(),
		}))
		m.log.Error("Restart ceiling exhausted", err, loggingpkg.LogFields{
			"service": d.Name,
			"limit":   limitErr.Limit,
		})
		return
	}

	m.log.Error("Failed to restart dead service", err, loggingpkg.LogFields{"service": d.Name})
}
