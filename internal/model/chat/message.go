package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// provisionalPrefix marks ids generated on the client before the server assigns one.
const provisionalPrefix = "local-"

// ID is a message or conversation identifier. Backends disagree on whether ids are
// integers or strings, so both JSON forms decode into the same value.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// NewProvisionalID returns a client-side id that never collides with server ids.
func NewProvisionalID() ID {
	return ID(provisionalPrefix + uuid.NewString())
}

// IsProvisional reports whether the id was generated locally.
func (id ID) IsProvisional() bool {
	return strings.HasPrefix(string(id), provisionalPrefix)
}

// Message is one turn of a conversation.
type Message struct {
	ID        ID        `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Provisional reports whether the message has not been confirmed by the server.
func (m Message) Provisional() bool {
	return m.ID.IsProvisional()
}

// NewRequest is the body of POST /chats/{id}/messages/.
type NewRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
