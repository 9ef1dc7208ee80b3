// Package gateway exposes the supervisor API over HTTP. It wraps a runtime
// in a gorilla/mux route table covering lifecycle control, the generic call
// surface and fleet introspection, mapping the runtime's typed errors onto
// HTTP status codes.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/drblury/maestro"
	transportpkg "github.com/drblury/maestro/transport"
)

// callerName is the source stamped on requests dispatched through the
// generic call route.
const callerName = "gateway"

// Handler is the REST surface over one runtime. It implements http.Handler
// and can be mounted on any server or on the runtime's own HTTP plumbing.
type Handler struct {
	rt     *maestro.Runtime
	log    maestro.ServiceLogger
	router *mux.Router

	// sinks is consulted by the /events/sinks route. Defaults to the
	// global transport registry.
	sinks *transportpkg.Registry
}

// Option tweaks handler construction.
type Option func(*Handler)

// WithSinkRegistry points the /events/sinks route at a specific transport
// registry instead of the global one.
func WithSinkRegistry(registry *transportpkg.Registry) Option {
	return func(h *Handler) { h.sinks = registry }
}

// NewHandler builds the gateway route table over the given runtime.
func NewHandler(rt *maestro.Runtime, log maestro.ServiceLogger, opts ...Option) *Handler {
	if log == nil {
		log = maestro.NopLogger()
	}

	h := &Handler{
		rt:    rt,
		log:   log,
		sinks: transportpkg.DefaultRegistry,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	r.HandleFunc("/services/{name}", h.getService).Methods(http.MethodGet)
	r.HandleFunc("/services/{name}/stop", h.stopService).Methods(http.MethodPost)
	r.HandleFunc("/services/{name}/restart", h.restartService).Methods(http.MethodPost)
	r.HandleFunc("/call/{service}/{action}", h.dispatchCall).Methods(http.MethodPost)
	r.HandleFunc("/events/sinks", h.listSinks).Methods(http.MethodGet)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Router exposes the underlying mux so a binary can mount extra resource
// routes next to the core surface.
func (h *Handler) Router() *mux.Router {
	return h.router
}

// WriteReply renders a call reply (or its failure) the same way the core
// routes do, for resource routes mounted on Router.
func (h *Handler) WriteReply(w http.ResponseWriter, reply map[string]any, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	if reply == nil {
		reply = map[string]any{}
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// errorBody is the JSON shape of every non-2xx gateway response.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := maestro.Encode(w, v); err != nil {
		h.log.Error("Failed to encode gateway response", err, nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	h.writeJSON(w, status, errorBody{Error: err.Error(), Code: status})
}

// statusForError maps the runtime's typed errors onto HTTP status codes.
func statusForError(err error) int {
	var (
		notFound  maestro.ServiceNotFoundError
		duplicate maestro.DuplicateServiceError
		limit     maestro.RestartLimitExceededError
		overflow  maestro.QueueOverflowError
		timeout   maestro.ServiceTimeoutError
		callErr   maestro.ServiceCallError
		confErr   maestro.ConfigValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &duplicate), errors.As(err, &limit):
		return http.StatusConflict
	case errors.As(err, &overflow):
		return http.StatusTooManyRequests
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &callErr):
		return http.StatusBadGateway
	case errors.As(err, &confErr),
		errors.Is(err, maestro.ErrWorkerNameRequired),
		errors.Is(err, maestro.ErrActionNameRequired),
		errors.Is(err, maestro.ErrTargetRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	services := h.rt.ListServices()
	live := 0
	for _, s := range services {
		if s.Status.Live() {
			live++
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"services": len(services),
		"live":     live,
	})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.rt.ListServices())
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	health, err := h.rt.ServiceHealth(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, health)
}

func (h *Handler) stopService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	force := r.URL.Query().Get("force") == "true"

	if err := h.rt.StopService(r.Context(), name, !force); err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("Service stopped via gateway", maestro.LogFields{
		"service": name,
		"force":   force,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{"service": name, "stopped": true, "forced": force})
}

func (h *Handler) restartService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.rt.RestartService(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}

	d, err := h.rt.ServiceHealth(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service":      name,
		"restarted":    true,
		"restartCount": d.RestartCount,
		"unitId":       d.UnitID,
	})
}

func (h *Handler) dispatchCall(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	service := vars["service"]
	action := vars["action"]

	var payload map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		if err := maestro.Decode(r.Body, &payload); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorBody{
				Error: "invalid JSON payload: " + err.Error(),
				Code:  http.StatusBadRequest,
			})
			return
		}
	}

	timeout, err := callTimeout(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: http.StatusBadRequest})
		return
	}

	reply, err := h.rt.Call(r.Context(), callerName, service, action, payload, timeout)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if reply == nil {
		reply = map[string]any{}
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// callTimeout reads the optional ?timeout= query parameter. Zero means the
// runtime's configured default.
func callTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid timeout: " + raw)
	}
	return timeout, nil
}

// sinkInfo describes one registered event sink.
type sinkInfo struct {
	Name         string                    `json:"name"`
	Capabilities transportpkg.Capabilities `json:"capabilities"`
}

func (h *Handler) listSinks(w http.ResponseWriter, r *http.Request) {
	names := h.sinks.Names()
	out := make([]sinkInfo, 0, len(names))
	for _, name := range names {
		out = append(out, sinkInfo{
			Name:         name,
			Capabilities: h.sinks.GetCapabilities(name),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}
