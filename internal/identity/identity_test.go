package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T, checker CredentialChecker) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		Secret:  []byte(strings.Repeat("s", 32)),
		MaxAge:  time.Hour,
		Checker: checker,
	}, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

// login performs a login and returns the cookies it set.
func login(t *testing.T, m *Manager, username, password string) (string, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	rr := httptest.NewRecorder()
	userID, err := m.Login(rr, req, username, password)
	if err != nil {
		t.Fatalf("Login(%q) failed: %v", username, err)
	}
	return userID, rr.Result().Cookies()
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestDeriveUserID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "alice", want: "admin_alice"},
		{in: "  bob  ", want: "admin_bob"},
		{in: "web_interface", want: "admin_web_interface"},
		{in: "", wantErr: ErrEmptyUsername},
		{in: "   ", wantErr: ErrEmptyUsername},
		{in: strings.Repeat("x", MaxUsernameLength+1), wantErr: ErrInvalidUsername},
		{in: "bad\nname", wantErr: ErrInvalidUsername},
		{in: "tab\tname", wantErr: ErrInvalidUsername},
		{in: strings.Repeat("я", MaxUsernameLength), want: "admin_" + strings.Repeat("я", MaxUsernameLength)},
		{in: strings.Repeat("я", MaxUsernameLength+1), wantErr: ErrInvalidUsername},
	}

	for _, tt := range tests {
		got, err := DeriveUserID(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeriveUserID(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("DeriveUserID(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestLoginStoresIdentityInCookie(t *testing.T) {
	m := newTestManager(t, nil)

	userID, cookies := login(t, m, "alice", "")
	if userID != "admin_alice" {
		t.Fatalf("expected admin_alice, got %q", userID)
	}
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	if !cookies[0].HttpOnly {
		t.Error("expected session cookie to be HttpOnly")
	}

	req := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), cookies)
	got, sessionID, ok := m.Identity(req)
	if !ok || got != "admin_alice" {
		t.Fatalf("Identity() = %q, %v; want admin_alice, true", got, ok)
	}
	if sessionID == "" {
		t.Error("expected a session id")
	}
}

func TestIdentityRejectsTamperedCookie(t *testing.T) {
	m := newTestManager(t, nil)
	_, cookies := login(t, m, "alice", "")

	forged := *cookies[0]
	forged.Value = forged.Value[:len(forged.Value)-4] + "AAAA"
	req := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), []*http.Cookie{&forged})

	if _, _, ok := m.Identity(req); ok {
		t.Fatal("expected tampered cookie to be rejected")
	}
}

func TestIdentityRejectsCookieFromOtherSecret(t *testing.T) {
	m := newTestManager(t, nil)
	_, cookies := login(t, m, "alice", "")

	other, err := NewManager(Options{Secret: []byte(strings.Repeat("o", 32))}, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	req := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), cookies)
	if _, _, ok := other.Identity(req); ok {
		t.Fatal("expected cookie signed with another secret to be rejected")
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	m := newTestManager(t, nil)
	_, cookies := login(t, m, "alice", "")

	req := withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), cookies)
	rr := httptest.NewRecorder()
	if err := m.Logout(rr, req); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	cleared := rr.Result().Cookies()
	if len(cleared) == 0 || cleared[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", cleared)
	}
}

func TestRequireRedirectsWithoutSession(t *testing.T) {
	m := newTestManager(t, nil)
	called := false
	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))

	if called {
		t.Fatal("protected handler must not run without a session")
	}
	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != LoginPath {
		t.Fatalf("expected redirect to %s, got %q", LoginPath, loc)
	}
}

func TestRequireInjectsIdentity(t *testing.T) {
	m := newTestManager(t, nil)
	_, cookies := login(t, m, "alice", "")

	var got string
	h := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), cookies))

	if got != "admin_alice" {
		t.Fatalf("expected admin_alice in context, got %q", got)
	}
}

func TestMiddlewarePassesAnonymousRequests(t *testing.T) {
	m := newTestManager(t, nil)
	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if id := UserIDFromContext(r.Context()); id != "" {
			t.Errorf("expected no identity, got %q", id)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/chat/ask", nil))
	if !called {
		t.Fatal("expected next handler to run")
	}
}

func TestLoginWithPasswordChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	checker, err := NewPasswordChecker("alice:" + string(hash))
	if err != nil {
		t.Fatalf("NewPasswordChecker failed: %v", err)
	}
	m := newTestManager(t, checker)

	userID, _ := login(t, m, "alice", "s3cret")
	if userID != "admin_alice" {
		t.Fatalf("expected admin_alice, got %q", userID)
	}

	for _, tc := range []struct{ user, pass string }{{"alice", "wrong"}, {"mallory", "s3cret"}} {
		rr := httptest.NewRecorder()
		_, err := m.Login(rr, httptest.NewRequest(http.MethodPost, "/login", nil), tc.user, tc.pass)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) error = %v, want ErrInvalidCredentials", tc.user, tc.pass, err)
		}
		if len(rr.Result().Cookies()) != 0 {
			t.Errorf("rejected login must not set a cookie")
		}
	}
}

func TestNewPasswordCheckerRejectsMalformed(t *testing.T) {
	for _, entries := range []string{"", "alice", "alice:plaintext", ":$2a$10$abc"} {
		if _, err := NewPasswordChecker(entries); err == nil {
			t.Errorf("NewPasswordChecker(%q) expected error", entries)
		}
	}
}

func TestNewChecker(t *testing.T) {
	c, err := NewChecker("none", "")
	if err != nil {
		t.Fatalf("NewChecker(none) failed: %v", err)
	}
	if err := c.Check(context.Background(), "anyone", ""); err != nil {
		t.Fatalf("AllowAll rejected login: %v", err)
	}

	if _, err := NewChecker("sso", ""); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
