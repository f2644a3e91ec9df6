package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDDecodesNumbersAndStrings(t *testing.T) {
	var msgs []Message
	raw := `[{"id": 42, "role": "assistant", "content": "hi", "created_at": "2024-05-01T10:00:00Z"},
	         {"id": "9b2c", "role": "user", "content": "yo", "created_at": "2024-05-01T10:00:01Z"},
	         {"id": null, "role": "user", "content": "", "created_at": "2024-05-01T10:00:02Z"}]`

	require.NoError(t, json.Unmarshal([]byte(raw), &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, ID("42"), msgs[0].ID)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, ID("9b2c"), msgs[1].ID)
	assert.Equal(t, ID(""), msgs[2].ID)
}

func TestIDRejectsGarbage(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &id))
}

func TestProvisionalIDs(t *testing.T) {
	a, b := NewProvisionalID(), NewProvisionalID()

	assert.NotEqual(t, a, b)
	assert.True(t, a.IsProvisional())
	assert.True(t, Message{ID: a}.Provisional())
	assert.False(t, ID("17").IsProvisional())
}

func TestLastMessage(t *testing.T) {
	_, ok := Conversation{}.LastMessage()
	assert.False(t, ok)

	conv := Conversation{Messages: []Message{{Content: "first"}, {Content: "second"}}}
	last, ok := conv.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "second", last.Content)
}
