package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(KindAuth, "POST /users/login", "Incorrect email or password")
	wrapped := fmt.Errorf("login: %w", base)

	assert.Equal(t, KindAuth, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindAuth))
	assert.False(t, IsKind(wrapped, KindTransport))
	assert.Equal(t, "Incorrect email or password", MessageOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, IsKind(nil, KindUnknown))
	assert.Equal(t, "boom", MessageOf(err))
	assert.Equal(t, "", MessageOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindTransport, "GET /chats/", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "GET /chats/ transport: dial tcp: connection refused", err.Error())
	assert.Nil(t, Wrap(KindTransport, "op", nil))
}
