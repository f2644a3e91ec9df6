package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/client"
	"github.com/zhouzirui/chatdesk/internal/session"
)

var ctx = context.Background()

type fakeBackend struct {
	mu           sync.Mutex
	users        map[string]string
	loginCalls   atomic.Int32
	registerBody map[string]string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.URL.Path {
	case "/users/login":
		b.loginCalls.Add(1)
		if pw, ok := b.users[body["email"]]; !ok || pw != body["password"] {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + body["email"], "token_type": "bearer"})
	case "/users/register":
		b.registerBody = body
		if _, taken := b.users[body["email"]]; taken {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Email already registered"}`))
			return
		}
		b.users[body["email"]] = body["password"]
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T) (*Manager, *fakeBackend, string) {
	t.Helper()
	backend := &fakeBackend{users: map[string]string{"ada@example.com": "secret"}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "token.json")
	sess := session.New(session.NewFileStore(path), nil)
	return NewManager(client.New(srv.URL, sess), nil), backend, path
}

func TestLoginStoresToken(t *testing.T) {
	m, _, path := setup(t)

	require.NoError(t, m.Login(ctx, "ada@example.com", "secret"))
	assert.Equal(t, session.Authenticated, m.State())

	// a fresh process reads the token back without any request
	fresh := session.New(session.NewFileStore(path), nil)
	require.NoError(t, fresh.Restore(ctx))
	token, ok := fresh.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-ada@example.com", token)
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	m, _, _ := setup(t)

	err := m.Login(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.Contains(t, apperr.MessageOf(err), "Incorrect email or password")
	assert.Equal(t, session.Anonymous, m.State())
}

func TestLoginValidatesInput(t *testing.T) {
	m, backend, _ := setup(t)

	err := m.Login(ctx, "  ", "secret")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, backend.loginCalls.Load())
}

func TestRegisterLogsIn(t *testing.T) {
	m, backend, _ := setup(t)

	require.NoError(t, m.Register(ctx, "grace", "grace@example.com", "cobol"))
	assert.Equal(t, session.Authenticated, m.State())
	backend.mu.Lock()
	assert.Equal(t, map[string]string{"username": "grace", "email": "grace@example.com", "password": "cobol"}, backend.registerBody)
	backend.mu.Unlock()
	assert.Equal(t, int32(1), backend.loginCalls.Load())
}

func TestRegisterFailureHasNoSideEffects(t *testing.T) {
	m, backend, _ := setup(t)

	err := m.Register(ctx, "ada", "ada@example.com", "other")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.Contains(t, apperr.MessageOf(err), "Email already registered")
	assert.Equal(t, session.Anonymous, m.State())
	assert.Zero(t, backend.loginCalls.Load())
}

func TestLogoutFromAnyState(t *testing.T) {
	m, _, path := setup(t)

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, session.Anonymous, m.State())

	require.NoError(t, m.Login(ctx, "ada@example.com", "secret"))
	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, session.Anonymous, m.State())
	assert.NoFileExists(t, path)
}

func TestLoginMissingTokenIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := NewManager(client.New(srv.URL, session.New(nil, nil)), nil)
	err := m.Login(ctx, "a@b.c", "pw")
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.Equal(t, session.Anonymous, m.State())
}

func TestLoginServerErrorKeepsKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewManager(client.New(srv.URL, session.New(nil, nil)), nil)
	err := m.Login(ctx, "a@b.c", "pw")
	assert.True(t, apperr.IsKind(err, apperr.KindServer))
}
