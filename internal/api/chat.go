package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/bot-console/internal/domain"
	"github.com/ashureev/bot-console/internal/identity"
	"github.com/ashureev/bot-console/internal/proxy"
	"github.com/go-chi/chi/v5"
)

const maxChatBodyBytes = 1 << 20

// askRequest is the browser's chat payload.
type askRequest struct {
	Text     *string           `json:"text"`
	Settings map[string]string `json:"settings"`
	UserID   string            `json:"user_id"`
}

// ChatOptions configures ChatHandler.
type ChatOptions struct {
	// RequireSession takes the identity from the session cookie only. When
	// false the body's user_id is used, falling back to domain.DefaultUserID.
	RequireSession bool
	Limiter        *RateLimiter
}

// ChatHandler proxies chat messages to the bot core.
type ChatHandler struct {
	*Handler
	forwarder proxy.Forwarder
	opts      ChatOptions
}

// NewChatHandler creates a chat handler.
func NewChatHandler(base *Handler, forwarder proxy.Forwarder, opts ChatOptions) *ChatHandler {
	return &ChatHandler{Handler: base, forwarder: forwarder, opts: opts}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/ask", h.Ask)
}

// Ask forwards one message. Every failure is answered with a single text
// fragment so the chat window can always render the response.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionUser := identity.UserIDFromContext(ctx)

	if h.opts.RequireSession && sessionUser == "" {
		h.logger.Warn("Chat request without session", "ip", identity.IPFromRequest(r))
		h.writeResult(w, http.StatusUnauthorized, proxy.Unauthenticated())
		return
	}

	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "request body must be a JSON object"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body is too large"
		}
		h.writeResult(w, http.StatusBadRequest, proxy.Fail(proxy.FailureBadRequest, msg, err))
		return
	}

	userID := h.resolveUserID(sessionUser, req.UserID)

	if h.opts.Limiter != nil && !h.opts.Limiter.Allow(userID) {
		h.logger.Warn("Chat rate limit exceeded", "user_id", userID)
		h.writeResult(w, http.StatusTooManyRequests,
			proxy.Fail(proxy.FailureRateLimited, "too many messages, wait a moment and try again", nil))
		return
	}

	result := h.forwarder.Forward(ctx, proxy.Call{
		UserID:    userID,
		SessionID: identity.SessionIDFromContext(ctx),
		Query:     req.Text,
		Settings:  req.Settings,
	})

	if ctx.Err() != nil {
		h.logger.Debug("Client went away before the bot core answered", "user_id", userID)
		return
	}
	h.writeResult(w, http.StatusOK, result)
}

func (h *ChatHandler) resolveUserID(sessionUser, bodyUser string) string {
	if h.opts.RequireSession {
		return sessionUser
	}
	if u := strings.TrimSpace(bodyUser); u != "" {
		return u
	}
	if sessionUser != "" {
		return sessionUser
	}
	return domain.DefaultUserID
}

func (h *ChatHandler) writeResult(w http.ResponseWriter, status int, result proxy.Result) {
	RawJSON(w, status, result.Body())
}
