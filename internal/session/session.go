// Package session holds the client's authentication state.
//
// A Session is created once per process and passed by reference to every component
// that issues requests. It is the only place the bearer token lives; writes go through
// Set, Clear and Expire, which persist the change and notify subscribers.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/logging"
)

// State is the authentication state of a Session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Reason explains why a state change happened.
type Reason string

const (
	ReasonRestored Reason = "restored"
	ReasonLogin    Reason = "login"
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"
)

// Event is delivered to subscribers after every state change.
type Event struct {
	State  State
	Reason Reason
}

// Listener receives session events. It is called outside the session lock.
type Listener func(Event)

// Session owns the bearer token.
type Session struct {
	// writeMu serializes mutations across the store call and the in-memory update.
	writeMu sync.Mutex

	mu        sync.RWMutex
	token     string
	store     TokenStore
	logger    *zap.Logger
	nextID    int
	listeners map[int]Listener
}

// New creates an anonymous session backed by store. Call Restore to load a
// previously persisted token.
func New(store TokenStore, logger *zap.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{
		store:     store,
		logger:    logging.OrNop(logger).Named("session"),
		listeners: make(map[int]Listener),
	}
}

// Restore reads the persisted token. It never touches the network.
func (s *Session) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	token, ok, err := s.store.Load(ctx)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok || token == "" {
		s.writeMu.Unlock()
		s.logger.Debug("no persisted token")
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Debug("session restored")
	s.notify(Event{State: Authenticated, Reason: ReasonRestored})
	return nil
}

// Token returns the current bearer token.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// State reports whether a token is held.
func (s *Session) State() State {
	if _, ok := s.Token(); ok {
		return Authenticated
	}
	return Anonymous
}

// Set persists token and transitions to Authenticated. The in-memory state only
// changes once persistence succeeds.
func (s *Session) Set(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("set session: empty token")
	}
	s.writeMu.Lock()
	if err := s.store.Save(ctx, token); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Info("session authenticated")
	s.notify(Event{State: Authenticated, Reason: ReasonLogin})
	return nil
}

// Clear drops the token and its persisted copy. It always leaves the session
// Anonymous; a persistence failure is returned after the in-memory state is cleared.
func (s *Session) Clear(ctx context.Context) error {
	return s.clear(ctx, ReasonLogout, "")
}

// Expire is Clear for a token the server rejected. It does nothing unless token is
// still the current one, so concurrent rejections of the same token produce a
// single expired event and a stale rejection never drops a newer login.
func (s *Session) Expire(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.clear(ctx, ReasonExpired, token)
}

// clear drops the token. A non-empty onlyIf restricts it to that token.
func (s *Session) clear(ctx context.Context, reason Reason, onlyIf string) error {
	s.writeMu.Lock()

	s.mu.Lock()
	if onlyIf != "" && s.token != onlyIf {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return nil
	}
	s.token = ""
	s.mu.Unlock()

	err := s.store.Clear(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to clear persisted token", zap.Error(err))
		err = fmt.Errorf("clear persisted token: %w", err)
	}

	s.logger.Info("session cleared", zap.String("reason", string(reason)))
	s.notify(Event{State: Anonymous, Reason: reason})
	return err
}

// Subscribe registers fn for state changes and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notify(event Event) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}
