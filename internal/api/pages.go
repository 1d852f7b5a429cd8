package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
	"github.com/ashureev/bot-console/internal/store"
	"github.com/ashureev/bot-console/web"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// statsWindow is the lookback for the "recent errors" figure on the stats page.
const statsWindow = 24 * time.Hour

// PageHandler serves the session-gated HTML pages.
type PageHandler struct {
	*Handler
	repo store.Repository
	gate func(http.Handler) http.Handler
	now  func() time.Time
}

// NewPageHandler creates a page handler. gate protects every page.
func NewPageHandler(base *Handler, repo store.Repository, gate func(http.Handler) http.Handler) *PageHandler {
	return &PageHandler{Handler: base, repo: repo, gate: gate, now: time.Now}
}

// RegisterRoutes registers the page routes behind the session gate.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate)
		r.Get("/", h.Dashboard)
		r.Get("/logs", h.Logs)
		r.Get("/logs/stats", h.Stats)
		r.Get("/chat", h.Chat)
	})
}

// Dashboard renders the landing page.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := h.page(r, "Dashboard", web.PageDashboard, h.botOnline(r.Context()))
	h.render(w, r, http.StatusOK, web.PageDashboard, page)
}

// Chat renders the chat test page.
func (h *PageHandler) Chat(w http.ResponseWriter, r *http.Request) {
	page := h.page(r, "Chat", web.PageChat, h.botOnline(r.Context()))
	h.render(w, r, http.StatusOK, web.PageChat, page)
}

// Logs renders the most recent error_log rows. The badge and the query run
// concurrently; a store failure still renders the page, with a 503.
func (h *PageHandler) Logs(w http.ResponseWriter, r *http.Request) {
	var (
		online  bool
		records []domain.ErrorLogRecord
		g       errgroup.Group
	)
	g.Go(func() error {
		online = h.botOnline(r.Context())
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = h.repo.RecentErrors(r.Context(), store.MaxRecentErrors)
		return err
	})
	err := g.Wait()

	page := h.page(r, "Logs", web.PageLogs, online)
	status := http.StatusOK
	if err != nil {
		if h.clientGone(r.Context()) {
			return
		}
		h.logStoreError("Failed to load error log", err)
		page.StoreUnavailable = true
		status = http.StatusServiceUnavailable
	} else {
		page.Errors = records
	}
	h.render(w, r, status, web.PageLogs, page)
}

// Stats renders error_log totals.
func (h *PageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		online bool
		stats  *domain.ErrorStats
		g      errgroup.Group
	)
	g.Go(func() error {
		online = h.botOnline(r.Context())
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = h.repo.ErrorStats(r.Context(), h.now().Add(-statsWindow))
		return err
	})
	err := g.Wait()

	page := h.page(r, "Stats", web.PageStats, online)
	status := http.StatusOK
	if err != nil {
		if h.clientGone(r.Context()) {
			return
		}
		h.logStoreError("Failed to load error stats", err)
		page.StoreUnavailable = true
		status = http.StatusServiceUnavailable
	} else {
		page.Stats = stats
	}
	h.render(w, r, status, web.PageStats, page)
}

// logStoreError logs lock contention with the bot core's writer at warn level.
func (h *PageHandler) logStoreError(msg string, err error) {
	if errors.Is(err, store.ErrBusy) {
		h.logger.Warn(msg, "error", err)
		return
	}
	h.logger.Error(msg, "error", err)
}

func (h *PageHandler) clientGone(ctx context.Context) bool {
	return ctx.Err() != nil
}
