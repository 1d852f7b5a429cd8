package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ashureev/bot-console/internal/store"
	"github.com/go-chi/chi/v5"
)

// HeartbeatChecker reports whether the heartbeat store answered and what it said.
type HeartbeatChecker interface {
	Check(ctx context.Context) (bool, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	*Handler
	repo      store.Repository
	heartbeat HeartbeatChecker
	timeout   time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Handler, repo store.Repository, heartbeat HeartbeatChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{Handler: base, repo: repo, heartbeat: heartbeat, timeout: timeout}
}

// Health returns the health status of the console and its dependencies.
// An offline bot core is reported but does not degrade the console.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "dependency", "database", "error", err)
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.heartbeat != nil {
		online, err := h.heartbeat.Check(ctx)
		switch {
		case err != nil:
			h.logger.Error("Health check failed", "dependency", "heartbeat_store", "error", err)
			checks["heartbeat_store"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		case online:
			checks["heartbeat_store"] = "ok"
			checks["bot_core"] = "online"
		default:
			checks["heartbeat_store"] = "ok"
			checks["bot_core"] = "offline"
		}
	}

	status := "healthy"
	if statusCode != http.StatusOK {
		status = "degraded"
	}
	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
