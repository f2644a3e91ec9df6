package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("username, email and password are required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidToken       = errors.New("could not validate credentials")
)

// User is a registered account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`

	passwordHash []byte
}

// Service keeps accounts and issued bearer tokens in memory.
type Service struct {
	mu         sync.RWMutex
	usersByKey map[string]*User // keyed by normalized email
	tokens     map[string]string
	cost       int
}

// NewService creates an empty account store hashing passwords with the given
// bcrypt cost (bcrypt.DefaultCost when zero).
func NewService(cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		usersByKey: make(map[string]*User),
		tokens:     make(map[string]string),
		cost:       cost,
	}
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(_ context.Context, username, email, password string) (User, error) {
	username = strings.TrimSpace(username)
	key := normalizeEmail(email)
	if username == "" || key == "" || password == "" {
		return User{}, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByKey[key]; exists {
		return User{}, ErrEmailTaken
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		CreatedAt:    time.Now().UTC(),
		passwordHash: hash,
	}
	s.usersByKey[key] = user
	return *user, nil
}

// Login verifies credentials and issues a new opaque bearer token.
func (s *Service) Login(_ context.Context, email, password string) (string, error) {
	s.mu.RLock()
	user, ok := s.usersByKey[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = normalizeEmail(email)
	s.mu.Unlock()
	return token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(_ context.Context, token string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.tokens[token]
	if !ok {
		return User{}, ErrInvalidToken
	}
	user, ok := s.usersByKey[key]
	if !ok {
		return User{}, ErrInvalidToken
	}
	return *user, nil
}

// Revoke invalidates a token. Unknown tokens are ignored.
func (s *Service) Revoke(_ context.Context, token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
