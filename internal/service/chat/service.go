package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

var (
	ErrOwnerRequired   = errors.New("owner id is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrContentRequired = errors.New("content is required")
	ErrInvalidRole     = errors.New("role must be user or assistant")
	ErrChatNotFound    = errors.New("chat not found")
)

type record struct {
	owner string
	conv  chat.Conversation
}

// Service stores conversations in memory, scoped by owner.
type Service struct {
	mu    sync.RWMutex
	chats map[chat.ID]*record
	now   func() time.Time
}

// NewService bootstraps the in-memory chat store used by the reference backend.
func NewService() *Service {
	return &Service{
		chats: make(map[chat.ID]*record),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateChat provisions an empty conversation for owner.
func (s *Service) CreateChat(_ context.Context, owner, title string) (chat.Conversation, error) {
	if owner == "" {
		return chat.Conversation{}, ErrOwnerRequired
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return chat.Conversation{}, ErrTitleRequired
	}

	conv := chat.Conversation{
		ID:        chat.ID(uuid.NewString()),
		Title:     title,
		CreatedAt: s.now(),
		Messages:  make([]chat.Message, 0, 16),
	}

	s.mu.Lock()
	s.chats[conv.ID] = &record{owner: owner, conv: conv}
	s.mu.Unlock()

	return copyConversation(conv), nil
}

// ListChats returns owner's conversations, newest first, with their messages.
func (s *Service) ListChats(_ context.Context, owner string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Conversation, 0)
	for _, rec := range s.chats {
		if rec.owner == owner {
			result = append(result, copyConversation(rec.conv))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetChat retrieves a conversation. Chats owned by someone else are reported as
// not found.
func (s *Service) GetChat(_ context.Context, owner string, id chat.ID) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[id]
	if !ok || rec.owner != owner {
		return chat.Conversation{}, ErrChatNotFound
	}
	return copyConversation(rec.conv), nil
}

// AppendMessage stores a message at the end of the conversation and returns it with
// its server-assigned id.
func (s *Service) AppendMessage(_ context.Context, owner string, id chat.ID, role chat.Role, content string) (chat.Message, error) {
	if role != chat.RoleUser && role != chat.RoleAssistant {
		return chat.Message{}, ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, ErrContentRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[id]
	if !ok || rec.owner != owner {
		return chat.Message{}, ErrChatNotFound
	}

	message := chat.Message{
		ID:        chat.ID(uuid.NewString()),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
	rec.conv.Messages = append(rec.conv.Messages, message)
	return message, nil
}

// LoadTranscript returns the stored messages of a conversation.
func (s *Service) LoadTranscript(ctx context.Context, owner string, id chat.ID) ([]chat.Message, error) {
	conv, err := s.GetChat(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

func copyConversation(conv chat.Conversation) chat.Conversation {
	copied := conv
	copied.Messages = make([]chat.Message, len(conv.Messages))
	copy(copied.Messages, conv.Messages)
	return copied
}
