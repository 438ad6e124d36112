package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = &config.AuthConfig{JWTSecret: "session-test", TokenExpireHours: 1}

func newLocalSession(store Store) *Session {
	cfg := &config.Config{Users: config.DefaultUsers()}
	return New(store, &accountAuthenticator{
		Accounts: service.NewAccountService(cfg),
		Auth:     testAuth,
	})
}

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(d))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("x"))
	require.NoError(t, err)
	return token
}

func TestSessionLogin(t *testing.T) {
	store := NewMemoryStore()
	s := newLocalSession(store)

	user, err := s.Login(context.Background(), "accountant@example.com", "acc123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAccountant, user.Role)
	assert.NotEmpty(t, s.Token())
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.HasRole(model.RoleAccountant))
	assert.False(t, s.HasRole(model.RoleAdmin))

	_, ok, _ := store.Get(UserKey)
	assert.True(t, ok)
	_, ok, _ = store.Get(TokenKey)
	assert.True(t, ok)
}

func TestSessionLoginFailure(t *testing.T) {
	store := NewMemoryStore()
	s := newLocalSession(store)
	_, err := s.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	for _, creds := range [][2]string{
		{"admin@example.com", "wrong"},
		{"nobody@example.com", "admin123"},
	} {
		_, err := s.Login(context.Background(), creds[0], creds[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, s.User())
		assert.Empty(t, s.Token())
	}

	_, ok, _ := store.Get(TokenKey)
	assert.False(t, ok)
}

func TestSessionRestore(t *testing.T) {
	store := NewMemoryStore()
	first := newLocalSession(store)
	_, err := first.Login(context.Background(), "uploader@example.com", "upload123")
	require.NoError(t, err)

	second := newLocalSession(store)
	require.NoError(t, second.Restore())
	require.NotNil(t, second.User())
	assert.Equal(t, "uploader@example.com", second.User().Email)
	assert.Equal(t, first.Token(), second.Token())
}

func TestSessionRestoreCorrupt(t *testing.T) {
	tests := []struct {
		name string
		user []byte
		tok  []byte
	}{
		{"bad json", []byte("{not json"), []byte("t")},
		{"unknown role", []byte(`{"id":"1","role":"root"}`), []byte("t")},
		{"token without user", nil, []byte("t")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			if tt.user != nil {
				require.NoError(t, store.Set(UserKey, tt.user))
			}
			require.NoError(t, store.Set(TokenKey, tt.tok))

			s := New(store, nil)
			require.NoError(t, s.Restore())
			assert.Nil(t, s.User())
			assert.Empty(t, s.Token())

			_, ok, _ := store.Get(UserKey)
			assert.False(t, ok)
			_, ok, _ = store.Get(TokenKey)
			assert.False(t, ok)
		})
	}
}

func TestSessionRestoreEmpty(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	require.NoError(t, s.Restore())
	assert.Nil(t, s.User())
	assert.False(t, s.IsAuthenticated())
}

func TestSessionLogoutAndClear(t *testing.T) {
	store := NewMemoryStore()
	s := newLocalSession(store)
	_, err := s.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	require.NoError(t, s.Logout())
	assert.Nil(t, s.User())
	_, ok, _ := store.Get(UserKey)
	assert.False(t, ok)

	// Clearing an empty session is fine
	require.NoError(t, s.Clear())
}

func TestSessionAdminHasEveryRole(t *testing.T) {
	s := newLocalSession(NewMemoryStore())
	_, err := s.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	assert.True(t, s.HasRole(model.RoleUploader))
	assert.True(t, s.HasRole(model.RoleAccountant))
}

func TestSessionTokenExpiry(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	user := &model.User{ID: "1", Role: model.RoleAdmin}

	require.NoError(t, s.Save(user, tokenExpiringIn(t, time.Hour)))
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.ShouldRefresh())

	require.NoError(t, s.Save(user, tokenExpiringIn(t, 2*time.Minute)))
	assert.True(t, s.ShouldRefresh())

	require.NoError(t, s.Save(user, tokenExpiringIn(t, -time.Minute)))
	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, s.TimeLeft())

	require.NoError(t, s.Save(user, "not-a-jwt"))
	assert.False(t, s.IsAuthenticated())
}

type failingAuth struct{ err error }

func (f failingAuth) Authenticate(context.Context, string, string) (*model.User, string, error) {
	return nil, "", f.err
}

func TestSessionLoginTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	s := New(NewMemoryStore(), failingAuth{err: boom})

	_, err := s.Login(context.Background(), "a@example.com", "x")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, s.User())
}
