// Package api provides HTTP handlers for the admin console.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/bot-console/internal/identity"
	"github.com/ashureev/bot-console/internal/liveness"
	"github.com/ashureev/bot-console/web"
)

// Renderer renders a named console page.
type Renderer interface {
	Render(w io.Writer, name string, page web.Page) error
}

// Handler provides common handler utilities.
type Handler struct {
	prober   liveness.Prober
	renderer Renderer
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(prober liveness.Prober, renderer Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		prober:   prober,
		renderer: renderer,
		logger:   logger.With("component", "api"),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RawJSON writes an already-encoded JSON body unchanged.
func RawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// botOnline asks the prober for the badge state. The prober never fails.
func (h *Handler) botOnline(ctx context.Context) bool {
	return h.prober.IsAlive(ctx)
}

// page builds the data shared by every page: title, nav state, badge and identity.
func (h *Handler) page(r *http.Request, title, active string, online bool) web.Page {
	return web.Page{
		Title:      title,
		ActivePage: active,
		BotOnline:  online,
		UserID:     identity.UserIDFromContext(r.Context()),
	}
}

// render writes a full page with the given status. Rendering goes to a buffer
// first so a template failure can still become a 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, page web.Page) {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, name, page); err != nil {
		h.logger.Error("Failed to render page", "page", name, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
