package runtime

import (
	"net/http"
	"sort"
	"strings"
	"time"

	codecpkg "github.com/drblury/maestro/internal/runtime/codec"
	errspkg "github.com/drblury/maestro/internal/runtime/errors"
	statspkg "github.com/drblury/maestro/internal/runtime/stats"
)

// ServiceSummary is the list view of one registered service.
type ServiceSummary struct {
	Name           string `json:"name"`
	Status         Status `json:"status"`
	UnitID         string `json:"unitId"`
	RestartCount   int    `json:"restartCount"`
	HeartbeatAgeMs int64  `json:"heartbeatAgeMs"`
	InboxLen       int    `json:"inboxLen"`
	InboxCap       int    `json:"inboxCap"`
}

// ServiceHealth is the full health detail of one service: the descriptor
// snapshot plus heartbeat, call statistics and process resources.
type ServiceHealth struct {
	Name         string                    `json:"name"`
	UnitID       string                    `json:"unitId"`
	Status       Status                    `json:"status"`
	StartedAt    time.Time                 `json:"startedAt"`
	RestartCount int                       `json:"restartCount"`
	InboxLen     int                       `json:"inboxLen"`
	InboxCap     int                       `json:"inboxCap"`
	Heartbeat    *statspkg.HeartbeatRecord `json:"heartbeat,omitempty"`
	Stats        *CallStats                `json:"stats,omitempty"`
	Resource     ResourceUsage             `json:"resource"`
}

// ListServices returns summaries for every registered service, sorted by
// name.
func (rt *Runtime) ListServices() []ServiceSummary {
	now := time.Now()
	descriptors := rt.registry.List()

	out := make([]ServiceSummary, 0, len(descriptors))
	for _, d := range descriptors {
		summary := ServiceSummary{
			Name:           d.Name,
			Status:         d.Status,
			UnitID:         d.UnitID,
			RestartCount:   d.RestartCount,
			HeartbeatAgeMs: -1,
		}
		if hb, ok := rt.stats.Heartbeat(d.Name); ok {
			summary.HeartbeatAgeMs = now.Sub(hb.LastBeat).Milliseconds()
		}
		if d.Inbox != nil {
			summary.InboxLen = d.Inbox.Len()
			summary.InboxCap = d.Inbox.Cap()
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ServiceHealth returns the health detail for one service.
func (rt *Runtime) ServiceHealth(name string) (*ServiceHealth, error) {
	d, ok := rt.registry.Get(name)
	if !ok {
		return nil, errspkg.ServiceNotFoundError{Name: name}
	}

	health := &ServiceHealth{
		Name:         d.Name,
		UnitID:       d.UnitID,
		Status:       d.Status,
		StartedAt:    d.StartedAt,
		RestartCount: d.RestartCount,
		Resource:     rt.supervisor.sampler.Snapshot(),
	}
	if d.Inbox != nil {
		health.InboxLen = d.Inbox.Len()
		health.InboxCap = d.Inbox.Cap()
	}
	if hb, ok := rt.stats.Heartbeat(name); ok {
		health.Heartbeat = &hb
	}
	if cs, ok := rt.supervisor.callStats(name); ok {
		health.Stats = &cs
	}
	return health, nil
}

// startIntrospection registers the fleet introspection endpoint when the
// API surface is enabled.
func (rt *Runtime) startIntrospection() {
	if !rt.Conf.APIEnabled {
		return
	}

	port := rt.Conf.APIPort
	if port == 0 {
		port = 8081
	}

	rt.RegisterHTTPHandler(port, "/api/fleet", http.HandlerFunc(rt.handleGetFleet))
}

func (rt *Runtime) handleGetFleet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if rt.Conf != nil && len(rt.Conf.APICORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := rt.allowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := codecpkg.Encode(w, rt.ListServices()); err != nil {
		rt.Logger.Error("Failed to encode fleet listing", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// allowedCORSOrigin checks if the request origin is allowed and returns the
// appropriate Access-Control-Allow-Origin value.
func (rt *Runtime) allowedCORSOrigin(requestOrigin string) string {
	if rt.Conf == nil {
		return ""
	}
	for _, allowed := range rt.Conf.APICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
