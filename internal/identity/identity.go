// Package identity establishes the per-operator admin identity carried in a
// signed session cookie and forwarded to the bot core as user_id.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	SessionName       = "botconsole_session"
	UserIDPrefix      = "admin_"
	LoginPath         = "/login"
	MaxUsernameLength = 64 // in runes; mirrors the loginName tag

	userIDValue    = "user_id"
	sessionIDValue = "session_id"
)

var (
	ErrEmptyUsername   = errors.New("username is required")
	ErrInvalidUsername = errors.New("username is invalid")
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

// UserIDFromContext extracts the admin identity from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the login session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying userID and sessionID.
func WithUserID(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// loginName is the validated form of a login username.
type loginName struct {
	Username string `validate:"required,max=64,nocontrol"`
}

var usernameValidator = newUsernameValidator()

func newUsernameValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	})
	return v
}

// DeriveUserID maps a login name to the identity forwarded to the bot core.
func DeriveUserID(username string) (string, error) {
	name := loginName{Username: strings.TrimSpace(username)}
	if err := usernameValidator.Struct(name); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return "", ErrEmptyUsername
		}
		return "", ErrInvalidUsername
	}
	return UserIDPrefix + name.Username, nil
}

func isValidUserID(id string) bool {
	return strings.HasPrefix(id, UserIDPrefix) && len(id) > len(UserIDPrefix)
}

// Options configures a Manager.
type Options struct {
	// Secret signs the session cookie. A random key is generated when empty,
	// which invalidates sessions on restart.
	Secret  []byte
	MaxAge  time.Duration
	Secure  bool
	Checker CredentialChecker
}

// Manager issues, reads and clears admin sessions.
type Manager struct {
	store   *sessions.CookieStore
	checker CredentialChecker
	logger  *slog.Logger
}

// NewManager creates a session manager.
func NewManager(opts Options, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "identity")

	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET not set, using an ephemeral key; sessions will not survive restarts")
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 12 * time.Hour
	}
	if opts.Checker == nil {
		opts.Checker = AllowAll{}
	}
	if _, ok := opts.Checker.(AllowAll); ok {
		logger.Warn("Login performs no credential verification (AUTH_MODE=none)")
	}

	store := sessions.NewCookieStore(secret)
	store.MaxAge(int(opts.MaxAge.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Secure = opts.Secure

	return &Manager{
		store:   store,
		checker: opts.Checker,
		logger:  logger,
	}, nil
}

// Login checks credentials, derives the identity and stores it in the session cookie.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, username, password string) (string, error) {
	userID, err := DeriveUserID(username)
	if err != nil {
		return "", err
	}
	username = strings.TrimPrefix(userID, UserIDPrefix)

	if err := m.checker.Check(r.Context(), username, password); err != nil {
		m.logger.Warn("Login rejected", "username", username, "ip", IPFromRequest(r), "error", err)
		return "", ErrInvalidCredentials
	}

	// A decode error still yields a fresh session to overwrite the bad cookie.
	sess, _ := m.store.Get(r, SessionName)
	sess.Values[userIDValue] = userID
	sess.Values[sessionIDValue] = uuid.NewString()
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	m.logger.Info("Admin logged in", "user_id", userID, "ip", IPFromRequest(r))
	return userID, nil
}

// Identity returns the identity stored in the request's session cookie.
func (m *Manager) Identity(r *http.Request) (userID, sessionID string, ok bool) {
	sess, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", "", false
	}
	userID, _ = sess.Values[userIDValue].(string)
	if !isValidUserID(userID) {
		return "", "", false
	}
	sessionID, _ = sess.Values[sessionIDValue].(string)
	return userID, sessionID, true
}

// Logout expires the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, SessionName)
	userID, _ := sess.Values[userIDValue].(string)

	for k := range sess.Values {
		delete(sess.Values, k)
	}
	opts := *m.store.Options
	opts.MaxAge = -1
	sess.Options = &opts
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	if userID != "" {
		m.logger.Info("Admin logged out", "user_id", userID)
	}
	return nil
}

// Middleware injects the session identity into the context when present.
// Requests without a session pass through untouched.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, sessionID, ok := m.Identity(r); ok {
			r = r.WithContext(WithUserID(r.Context(), userID, sessionID))
		}
		next.ServeHTTP(w, r)
	})
}

// Require gates protected pages: without a session the request is redirected
// to the login page and next is never called.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, sessionID, ok := m.Identity(r)
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID, sessionID)))
	})
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
