// Package auth implements login, registration and logout on top of a session.Session.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/client"
	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/session"
)

const (
	loginPath    = "/users/login"
	registerPath = "/users/register"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Manager drives the Anonymous/Authenticated transitions of a session.
type Manager struct {
	client  *client.Client
	session *session.Session
	logger  *zap.Logger
}

// NewManager returns a Manager that authenticates through c and stores tokens in
// the session c was built with.
func NewManager(c *client.Client, logger *zap.Logger) *Manager {
	return &Manager{
		client:  c,
		session: c.Session(),
		logger:  logging.OrNop(logger).Named("auth"),
	}
}

// State reports the current session state.
func (m *Manager) State() session.State {
	return m.session.State()
}

// Login exchanges credentials for a token and stores it. On failure the session is
// left untouched and the returned error has kind Auth (or Validation/Transport/Server).
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperr.New(apperr.KindValidation, "POST "+loginPath, "email and password are required")
	}

	var resp loginResponse
	err := m.client.Do(ctx, http.MethodPost, loginPath, loginRequest{Email: email, Password: password}, &resp, true)
	if err != nil {
		m.logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		return asAuthError(err)
	}
	if resp.AccessToken == "" {
		return apperr.New(apperr.KindAuth, "POST "+loginPath, "response did not contain an access token")
	}

	if err := m.session.Set(ctx, resp.AccessToken); err != nil {
		return err
	}
	m.logger.Info("logged in", zap.String("email", email))
	return nil
}

// Register creates the account and then logs in with the same credentials, since
// registration itself does not hand out a token.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return apperr.New(apperr.KindValidation, "POST "+registerPath, "username, email and password are required")
	}

	req := registerRequest{Username: username, Email: email, Password: password}
	if err := m.client.Do(ctx, http.MethodPost, registerPath, req, nil, true); err != nil {
		m.logger.Info("registration rejected", zap.String("email", email), zap.Error(err))
		return asAuthError(err)
	}

	m.logger.Info("registered", zap.String("username", username))
	return m.Login(ctx, email, password)
}

// Logout drops the token locally. It never calls the backend and succeeds from any
// state; a failure to clear persisted storage is returned but the session is
// Anonymous regardless.
func (m *Manager) Logout(ctx context.Context) error {
	return m.session.Clear(ctx)
}

// asAuthError reclassifies backend rejections of credential requests as Auth errors.
// Transport and server failures keep their kind.
func asAuthError(err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindValidation {
		return err
	}
	authErr := *e
	authErr.Kind = apperr.KindAuth
	return &authErr
}
