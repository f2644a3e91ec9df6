// Package apperr defines the error kinds surfaced by the chat client.
//
// Every failure that crosses a package boundary on the client side is an *Error
// carrying a Kind, so callers can branch with IsKind instead of matching text.
// The original server text stays available through MessageOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates client-side failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth: credentials rejected by login/register.
	KindAuth
	// KindTransport: the backend could not be reached.
	KindTransport
	// KindValidation: the request was rejected as malformed, or never sent because input was invalid.
	KindValidation
	// KindSessionExpired: an authenticated request was rejected with 401/403.
	KindSessionExpired
	// KindServer: the backend failed with a 5xx.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindSessionExpired:
		return "session_expired"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the typed client error.
type Error struct {
	Kind    Kind
	Op      string // e.g. "POST /users/login"
	Status  int    // HTTP status, 0 when no response was received
	Message string // original server text or cause description
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to err. The message defaults to err's text.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the human-facing text of err: the server-provided message when
// there is one, otherwise err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
