package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthTimeout = 5 * time.Second

// Pinger is satisfied by the transcript store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheState reports whether the sprint cache has loaded.
type CacheState interface {
	Populated() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cache   CacheState
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. db may be nil when transcripts are disabled.
func NewHealthHandler(cache CacheState, db Pinger) *HealthHandler {
	return &HealthHandler{cache: cache, db: db, timeout: defaultHealthTimeout}
}

// Health returns the health status of the API and its dependencies.
// Only an unreachable database makes the service unhealthy; a cache still
// loading is reported but the assistant keeps answering.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "cache": "ok", "database": "disabled"}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if !h.cache.Populated() {
		checks["cache"] = "loading"
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
