package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestSessionStartsAnonymous(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.Restore(ctx))

	_, ok := s.Token()
	assert.False(t, ok)
	assert.Equal(t, Anonymous, s.State())
}

func TestSessionPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	first := New(NewFileStore(path), nil)
	require.NoError(t, first.Set(ctx, "tok-123"))
	assert.Equal(t, Authenticated, first.State())

	rec := &recorder{}
	fresh := New(NewFileStore(path), nil)
	fresh.Subscribe(rec.listen)
	require.NoError(t, fresh.Restore(ctx))

	token, ok := fresh.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, []Event{{State: Authenticated, Reason: ReasonRestored}}, rec.all())
}

func TestSessionClearIsUnconditional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	s := New(NewFileStore(path), nil)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	// never authenticated
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, Anonymous, s.State())

	require.NoError(t, s.Set(ctx, "tok"))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, Anonymous, s.State())
	assert.NoFileExists(t, path)

	fresh := New(NewFileStore(path), nil)
	require.NoError(t, fresh.Restore(ctx))
	assert.Equal(t, Anonymous, fresh.State())

	assert.Equal(t, []Event{
		{State: Anonymous, Reason: ReasonLogout},
		{State: Authenticated, Reason: ReasonLogin},
		{State: Anonymous, Reason: ReasonLogout},
	}, rec.all())
}

func TestSessionExpireOnlyMatchingToken(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	rec := &recorder{}
	s.Subscribe(rec.listen)
	require.NoError(t, s.Set(ctx, "new"))

	// a stale token rejected after re-login must not log the user out
	require.NoError(t, s.Expire(ctx, "old"))
	assert.Equal(t, Authenticated, s.State())

	require.NoError(t, s.Expire(ctx, "new"))
	require.NoError(t, s.Expire(ctx, "new"))
	assert.Equal(t, Anonymous, s.State())

	assert.Equal(t, []Event{
		{State: Authenticated, Reason: ReasonLogin},
		{State: Anonymous, Reason: ReasonExpired},
	}, rec.all())
}

func TestSessionUnsubscribe(t *testing.T) {
	s := New(nil, nil)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.listen)
	unsubscribe()
	unsubscribe()

	require.NoError(t, s.Set(ctx, "tok"))
	assert.Empty(t, rec.all())
}

type failingStore struct {
	MemoryStore
	saveErr  error
	clearErr error
}

func (f *failingStore) Save(ctx context.Context, token string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, token)
}

func (f *failingStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.MemoryStore.Clear(ctx)
}

func TestSessionSetFailureKeepsState(t *testing.T) {
	s := New(&failingStore{saveErr: errors.New("disk full")}, nil)

	err := s.Set(ctx, "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, Anonymous, s.State())
	assert.Error(t, s.Set(ctx, ""))
}

func TestSessionClearFailureStillAnonymous(t *testing.T) {
	store := &failingStore{}
	s := New(store, nil)
	require.NoError(t, s.Set(ctx, "tok"))

	store.clearErr = errors.New("read-only")
	assert.Error(t, s.Clear(ctx))
	assert.Equal(t, Anonymous, s.State())
}

// slowClearStore delays Clear so a concurrent Set can interleave with it.
type slowClearStore struct {
	*MemoryStore
	delay time.Duration
}

func (s slowClearStore) Clear(ctx context.Context) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Clear(ctx)
}

func TestStaleExpireDoesNotWipeNewLogin(t *testing.T) {
	store := slowClearStore{MemoryStore: NewMemoryStore(), delay: 50 * time.Millisecond}
	s := New(store, nil)
	require.NoError(t, s.Set(ctx, "old"))

	done := make(chan error, 1)
	go func() { done <- s.Expire(ctx, "old") }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "new"))
	require.NoError(t, <-done)

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "new", token)

	persisted, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", persisted)
}

func TestExpireAfterNewLoginIsIgnored(t *testing.T) {
	store := NewMemoryStore()
	s := New(store, nil)
	require.NoError(t, s.Set(ctx, "old"))
	require.NoError(t, s.Set(ctx, "new"))

	require.NoError(t, s.Expire(ctx, "old"))

	persisted, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", persisted)
	assert.Equal(t, Authenticated, s.State())
}
