package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/ChrisHK/label-printer/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Pinger checks a dependency's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves health and status endpoints.
type Handler struct {
	service string
	version string
	db      Pinger
}

// New creates a new health handler.
func New(service, version string, db Pinger) *Handler {
	return &Handler{service: service, version: version, db: db}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready handles GET /ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := []Check{{Name: "api", Status: "ok"}}
	if h.db != nil {
		checks = append(checks, h.ping(r.Context()))
	}

	allReady := true
	for _, check := range checks {
		if check.Status != "ok" {
			allReady = false
			break
		}
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func (h *Handler) ping(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return Check{Name: "database", Status: "error", Error: err.Error()}
	}
	return Check{Name: "database", Status: "ok"}
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Database string  `json:"database"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	dbStart := time.Now()
	database := "ok"
	if h.db != nil {
		if c := h.ping(r.Context()); c.Status != "ok" {
			database = c.Status
		}
	}

	status := "ok"
	if database != "ok" {
		status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(dbStart).Milliseconds(),
		Checks: StatusChecks{
			Database: database,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	})
}
