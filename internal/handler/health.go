package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/segyhp/loan-tracker/pkg/response"
)

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database Pinger
	cache    Pinger
	timeout  time.Duration
}

// NewHealthHandler builds the health endpoints. cache may be nil when Redis
// is not configured.
func NewHealthHandler(database, cache Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{
		database: database,
		cache:    cache,
		timeout:  timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready performs readiness check including database and cache connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	h.check(r.Context(), &status, "database", h.database)
	if h.cache != nil {
		h.check(r.Context(), &status, "cache", h.cache)
	} else {
		status.Checks["cache"] = "disabled"
	}

	if status.Status == "error" {
		response.ServiceUnavailable(w, status)
		return
	}

	response.Success(w, status)
}

func (h *HealthHandler) check(ctx context.Context, status *HealthStatus, name string, dep Pinger) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := dep.Ping(ctx); err != nil {
		status.Status = "error"
		status.Checks[name] = "failed: " + err.Error()
		return
	}
	status.Checks[name] = "ok"
}
