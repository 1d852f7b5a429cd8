package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/bot-console/internal/identity"
	"github.com/ashureev/bot-console/web"
	"github.com/go-chi/chi/v5"
)

// SessionManager is the session surface the auth handlers need.
type SessionManager interface {
	Login(w http.ResponseWriter, r *http.Request, username, password string) (string, error)
	Identity(r *http.Request) (userID, sessionID string, ok bool)
	Logout(w http.ResponseWriter, r *http.Request) error
}

// AuthHandler serves login and logout.
type AuthHandler struct {
	*Handler
	sessions      SessionManager
	needsPassword bool
}

// NewAuthHandler creates an auth handler. needsPassword shows the password field.
func NewAuthHandler(base *Handler, sessions SessionManager, needsPassword bool) *AuthHandler {
	return &AuthHandler{Handler: base, sessions: sessions, needsPassword: needsPassword}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Get(identity.LoginPath, h.LoginPage)
	r.Post(identity.LoginPath, h.Login)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.Logout)
}

// LoginPage renders the login form, or sends signed-in operators home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.sessions.Identity(r); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", "")
}

// Login establishes the session and redirects to the dashboard.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "Malformed login form.")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	if _, err := h.sessions.Login(w, r, username, password); err != nil {
		switch {
		case errors.Is(err, identity.ErrEmptyUsername):
			h.renderLogin(w, r, http.StatusBadRequest, username, "Enter a username.")
		case errors.Is(err, identity.ErrInvalidUsername):
			h.renderLogin(w, r, http.StatusBadRequest, username, "That username is not allowed.")
		case errors.Is(err, identity.ErrInvalidCredentials):
			h.renderLogin(w, r, http.StatusUnauthorized, username, "Invalid username or password.")
		default:
			h.logger.Error("Login failed", "error", err)
			h.renderLogin(w, r, http.StatusInternalServerError, username, "Login failed, try again.")
		}
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout clears the session and returns to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.logger.Error("Logout failed", "error", err)
	}
	http.Redirect(w, r, identity.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, username, message string) {
	page := h.page(r, "Log in", web.PageLogin, false)
	page.Username = username
	page.LoginError = message
	page.NeedsPassword = h.needsPassword
	h.render(w, r, status, web.PageLogin, page)
}
