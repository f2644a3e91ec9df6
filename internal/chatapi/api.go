// Package chatapi wraps the conversation endpoints of the chat backend.
package chatapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/client"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

// ErrEmptyReply describes a 2xx message response without an id or role.
var ErrEmptyReply = errors.New("server returned an empty reply")

// API issues conversation requests through an authenticated client.
type API struct {
	client *client.Client
}

// New returns an API using c.
func New(c *client.Client) *API {
	return &API{client: c}
}

// ListChats returns the caller's conversations.
func (a *API) ListChats(ctx context.Context) ([]chat.Conversation, error) {
	var chats []chat.Conversation
	if err := a.client.Do(ctx, http.MethodGet, "/chats/", nil, &chats, false); err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []chat.Conversation{}
	}
	return chats, nil
}

// CreateChat creates a conversation. A blank title is rejected without a request.
func (a *API) CreateChat(ctx context.Context, title string) (chat.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return chat.Conversation{}, apperr.New(apperr.KindValidation, "POST /chats/", "title is required")
	}

	var created chat.Conversation
	if err := a.client.Do(ctx, http.MethodPost, "/chats/", chat.CreateRequest{Title: title}, &created, false); err != nil {
		return chat.Conversation{}, err
	}
	return created, nil
}

// GetChat fetches one conversation, with its messages when includeMessages is set.
func (a *API) GetChat(ctx context.Context, id chat.ID, includeMessages bool) (chat.Conversation, error) {
	path := chatPath(id) + "?include_messages=" + boolParam(includeMessages)

	var conv chat.Conversation
	if err := a.client.Do(ctx, http.MethodGet, path, nil, &conv, false); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// PostMessage sends a message and returns the reply the backend generated for it.
func (a *API) PostMessage(ctx context.Context, id chat.ID, role chat.Role, content string) (chat.Message, error) {
	path := chatPath(id) + "messages/"

	var reply chat.Message
	req := chat.NewRequest{Role: role, Content: content}
	if err := a.client.Do(ctx, http.MethodPost, path, req, &reply, false); err != nil {
		return chat.Message{}, err
	}
	if reply.ID == "" || reply.Role == "" {
		return chat.Message{}, apperr.New(apperr.KindServer, "POST "+path, ErrEmptyReply.Error())
	}
	return reply, nil
}

func chatPath(id chat.ID) string {
	return "/chats/" + url.PathEscape(id.String()) + "/"
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
