package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a CredentialChecker rejects a login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialChecker decides whether a login attempt may establish an identity.
type CredentialChecker interface {
	Check(ctx context.Context, username, password string) error
}

// AllowAll accepts every username without verification.
// The console only needs a stable per-operator identity; deployments that need
// authentication switch to PasswordChecker.
type AllowAll struct{}

// Check always succeeds.
func (AllowAll) Check(context.Context, string, string) error { return nil }

// PasswordChecker verifies bcrypt password hashes per username.
type PasswordChecker struct {
	hashes map[string][]byte
}

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})

// NewPasswordChecker parses "user:bcrypt-hash,user2:bcrypt-hash".
func NewPasswordChecker(entries string) (*PasswordChecker, error) {
	hashes := make(map[string][]byte)
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, hash, ok := strings.Cut(entry, ":")
		user = strings.TrimSpace(user)
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("malformed credential entry %q", entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("credential for %q is not a bcrypt hash: %w", user, err)
		}
		hashes[user] = []byte(hash)
	}
	if len(hashes) == 0 {
		return nil, errors.New("no credentials configured")
	}
	return &PasswordChecker{hashes: hashes}, nil
}

// Check compares password against the stored hash for username.
func (c *PasswordChecker) Check(_ context.Context, username, password string) error {
	hash, ok := c.hashes[username]
	if !ok {
		// Burn the same bcrypt cost so unknown users are not distinguishable by timing.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NewChecker builds the checker for an AUTH_MODE value.
//
//nolint:ireturn // callers only need the interface.
func NewChecker(mode, credentials string) (CredentialChecker, error) {
	switch mode {
	case "", "none":
		return AllowAll{}, nil
	case "password":
		return NewPasswordChecker(credentials)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// HashPassword returns a bcrypt hash suitable for ADMIN_CREDENTIALS.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
