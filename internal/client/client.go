// Package client is the authenticated HTTP wrapper every backend call goes through.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/session"
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}

// Options customizes a single request.
type Options struct {
	Method  string // defaults to GET
	Body    any    // JSON-encoded unless it is already []byte or json.RawMessage
	Headers http.Header
	Query   url.Values
	// Anonymous suppresses the bearer header. Used by login and register, whose
	// 401 means "bad credentials", not "session expired".
	Anonymous bool
}

// Client sends JSON requests to the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	session    *session.Session
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
	}
}

// New creates a client for baseURL reading its bearer token from sess.
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		session:    sess,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("http")
	return c
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// Request performs the call and returns the raw JSON body (nil when empty).
//
// Failures are *apperr.Error values. A 401/403 on a request that carried a bearer
// token expires the session before the error is returned.
func (c *Client) Request(ctx context.Context, path string, opts Options) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + path

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var token string
	if !opts.Anonymous && c.session != nil {
		if t, ok := c.session.Token(); ok {
			token = t
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, values := range opts.Headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindTransport, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, op, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("request done",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(ctx, op, token, resp.StatusCode, string(raw))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, apperr.New(apperr.KindServer, op, "invalid JSON in response")
	}
	return json.RawMessage(raw), nil
}

// Do is Request followed by decoding into out (skipped when out is nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any, anonymous bool) error {
	raw, err := c.Request(ctx, path, Options{Method: method, Body: in, Anonymous: anonymous})
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.KindServer, method+" "+path, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, op, token string, status int, body string) error {
	httpErr := &HTTPError{Status: status, Body: body}
	err := &apperr.Error{Op: op, Status: status, Message: body, Err: httpErr}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if token == "" {
			err.Kind = apperr.KindAuth
			break
		}
		err.Kind = apperr.KindSessionExpired
		c.logger.Info("bearer token rejected, expiring session", zap.String("op", op), zap.Int("status", status))
		if expireErr := c.session.Expire(context.WithoutCancel(ctx), token); expireErr != nil {
			c.logger.Warn("failed to expire session", zap.Error(expireErr))
		}
	case status >= 500:
		err.Kind = apperr.KindServer
	case status >= 400:
		err.Kind = apperr.KindValidation
	default:
		err.Kind = apperr.KindUnknown
	}
	return err
}

func encodeBody(body any) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(v), nil
	case json.RawMessage:
		return bytes.NewReader(v), nil
	case string:
		return strings.NewReader(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// IsHTTPStatus reports whether err is an HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}
