package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"

	storeProbeTimeout = 5 * time.Second
)

// HealthChecker is satisfied by every store handle returned from store.Open.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and a detailed status report.
type HealthHandler struct {
	store     HealthChecker
	backend   string
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler. backend names the configured
// store in the check output.
func NewHealthHandler(store HealthChecker, backend, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		backend:   backend,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Runtime   *RuntimeStats    `json:"runtime,omitempty"`
}

// Check is the result of probing one dependency.
type Check struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// RuntimeStats is included in the detailed report only.
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	AllocBytes uint64 `json:"alloc_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness reports that the process is running. The store is not probed.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: now(),
	})
}

// HandleReadiness reports whether the store can serve requests.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.report(r.Context(), statusUnhealthy)
	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

// HandleHealth is the readiness report plus runtime statistics, for humans.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.report(r.Context(), statusDegraded)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = &RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		AllocBytes: mem.Alloc,
		SysBytes:   mem.Sys,
		NumGC:      mem.NumGC,
	}

	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

// report probes the store; failing marks the overall status on failure.
func (h *HealthHandler) report(ctx context.Context, failing string) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, storeProbeTimeout)
	defer cancel()

	check := h.checkStore(ctx)
	status := statusHealthy
	if check.Status != statusHealthy {
		status = failing
	}

	return HealthResponse{
		Status:    status,
		Timestamp: now(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]Check{"store": check},
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) Check {
	check := Check{Status: statusHealthy, Backend: h.backend}
	if h.store == nil {
		check.Status = statusUnhealthy
		check.Message = "Store not configured"
		return check
	}

	start := time.Now()
	err := h.store.Ping(ctx)
	check.Latency = time.Since(start).String()
	if err != nil {
		check.Status = statusUnhealthy
		check.Message = err.Error()
	}
	return check
}

func statusCodeFor(status string) int {
	if status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
