package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/chatdesk/internal/model/chat"
	chat "github.com/zhouzirui/chatdesk/internal/service/chat"
)

func TestServiceGetChat(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	created, err := svc.CreateChat(ctx, "user-1", "  Groceries ")
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	got, err := svc.GetChat(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}

	if got.ID != created.ID {
		t.Fatalf("unexpected chat ID: got %s want %s", got.ID, created.ID)
	}
	if got.Title != "Groceries" {
		t.Fatalf("unexpected title: got %q", got.Title)
	}
}

func TestServiceGetChatNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetChat(ctx, "user-1", "missing"); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestServiceChatsAreScopedToOwner(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	created, _ := svc.CreateChat(ctx, "alice", "secret plans")

	if _, err := svc.GetChat(ctx, "bob", created.ID); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected bob to be denied, got %v", err)
	}
	if _, err := svc.AppendMessage(ctx, "bob", created.ID, model.RoleUser, "hi"); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected bob append to be denied, got %v", err)
	}

	chats, _ := svc.ListChats(ctx, "bob")
	if len(chats) != 0 {
		t.Fatalf("expected no chats for bob, got %d", len(chats))
	}
}

func TestServiceAppendKeepsOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	created, _ := svc.CreateChat(ctx, "alice", "t")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.AppendMessage(ctx, "alice", created.ID, model.RoleUser, content); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	messages, err := svc.LoadTranscript(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(messages) != 3 || messages[0].Content != "one" || messages[2].Content != "three" {
		t.Fatalf("unexpected transcript: %+v", messages)
	}

	// returned slices are copies
	messages[0].Content = "mutated"
	again, _ := svc.LoadTranscript(ctx, "alice", created.ID)
	if again[0].Content != "one" {
		t.Fatalf("transcript was mutated through a returned slice")
	}
}

func TestServiceValidation(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.CreateChat(ctx, "alice", "  "); !errors.Is(err, chat.ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.CreateChat(ctx, "", "t"); !errors.Is(err, chat.ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}

	created, _ := svc.CreateChat(ctx, "alice", "t")
	if _, err := svc.AppendMessage(ctx, "alice", created.ID, "system", "x"); !errors.Is(err, chat.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.AppendMessage(ctx, "alice", created.ID, model.RoleUser, " "); !errors.Is(err, chat.ErrContentRequired) {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
}
