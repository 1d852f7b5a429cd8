package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const statusWriteTimeout = 5 * time.Second

// StatusSource pushes bot core online/offline changes.
type StatusSource interface {
	Subscribe() (<-chan bool, func())
}

type statusResponse struct {
	Online bool `json:"online"`
}

// StatusHandler reports bot core liveness.
type StatusHandler struct {
	*Handler
	source         StatusSource
	originPatterns []string
}

// NewStatusHandler creates a status handler. allowedOrigins are full origins
// (scheme://host[:port]) or "*"; same-origin websocket upgrades are always allowed.
func NewStatusHandler(base *Handler, source StatusSource, allowedOrigins []string) *StatusHandler {
	return &StatusHandler{
		Handler:        base,
		source:         source,
		originPatterns: originPatterns(allowedOrigins),
	}
}

// RegisterRoutes registers status routes.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/bot-status", h.BotStatus)
	if h.source != nil {
		r.Get("/bot-status/ws", h.Stream)
	}
}

// BotStatus returns {"online": bool}. It never fails.
func (h *StatusHandler) BotStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, statusResponse{Online: h.botOnline(r.Context())})
}

// Stream upgrades to a websocket and pushes {"online": bool} on every change.
func (h *StatusHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("Failed to accept status websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.CloseNow(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			h.logger.Debug("Failed to close status websocket", "error", closeErr)
		}
	}()

	// The client never sends; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := ws.CloseRead(r.Context())

	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-updates:
			if !ok {
				_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.writeStatus(ctx, ws, online); err != nil {
				h.logger.Debug("Status websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *StatusHandler) writeStatus(ctx context.Context, ws *websocket.Conn, online bool) error {
	ctx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, statusResponse{Online: online})
}

// originPatterns converts configured origins to the host patterns websocket.Accept expects.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}
