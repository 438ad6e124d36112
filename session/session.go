// Package session holds the signed-in identity of a client and persists it
// across runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserKey  = "user_data"
	TokenKey = "auth_token"

	// refreshWindow is how close to expiry a token should be renewed
	refreshWindow = 5 * time.Minute
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator exchanges credentials for an identity and a bearer token.
// Implementations return ErrInvalidCredentials for any rejected login.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, string, error)
}

// Session is the current identity of a client. The zero value is not usable;
// create one with New.
type Session struct {
	mu    sync.RWMutex
	store Store
	auth  Authenticator
	user  *model.User
	token string
	now   func() time.Time
}

func New(store Store, auth Authenticator) *Session {
	return &Session{store: store, auth: auth, now: time.Now}
}

// Restore loads a previously saved identity. Unreadable user data clears the
// saved state instead of failing.
func (s *Session) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawUser, hasUser, err := s.store.Get(UserKey)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	rawToken, hasToken, err := s.store.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if !hasUser && !hasToken {
		return nil
	}

	var user model.User
	if !hasUser || !hasToken || json.Unmarshal(rawUser, &user) != nil || !user.Role.Valid() {
		slog.Warn("discarding unreadable session state")
		s.user, s.token = nil, ""
		return s.store.Delete(UserKey, TokenKey)
	}

	s.user = &user
	s.token = string(rawToken)
	return nil
}

// Login authenticates and saves the identity. On failure the session is
// left signed out.
func (s *Session) Login(ctx context.Context, email, password string) (*model.User, error) {
	if s.auth == nil {
		return nil, errors.New("session has no authenticator")
	}

	user, token, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		if clearErr := s.Clear(); clearErr != nil {
			slog.Warn("clear session after failed login", "error", clearErr)
		}
		return nil, err
	}

	if err := s.Save(user, token); err != nil {
		return nil, err
	}
	u := *user
	return &u, nil
}

// Save stores an identity obtained elsewhere, such as a refreshed token
func (s *Session) Save(user *model.User, token string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(TokenKey, []byte(token)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.store.Set(UserKey, raw); err != nil {
		_ = s.store.Delete(TokenKey)
		return fmt.Errorf("save user: %w", err)
	}

	u := *user
	s.user = &u
	s.token = token
	return nil
}

// Logout signs the user out
func (s *Session) Logout() error {
	return s.Clear()
}

// Clear drops the identity and both saved keys
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""
	return s.store.Delete(UserKey, TokenKey)
}

// User returns a copy of the signed-in user, or nil
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// HasRole reports whether the signed-in user holds role; admin holds all
func (s *Session) HasRole(role model.Role) bool {
	return gate.HasRole(s.User(), role)
}

// IsAuthenticated reports whether there is a user with an unexpired token
func (s *Session) IsAuthenticated() bool {
	return s.User() != nil && s.TimeLeft() > 0
}

// TimeLeft is how long the token stays valid. The signature is not checked;
// the server does that.
func (s *Session) TimeLeft() time.Duration {
	token := s.Token()
	if token == "" {
		return 0
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return 0
	}
	left := claims.ExpiresAt.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

// ShouldRefresh reports whether the token is valid but close to expiry
func (s *Session) ShouldRefresh() bool {
	left := s.TimeLeft()
	return left > 0 && left < refreshWindow
}
