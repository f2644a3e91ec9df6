package ai

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chatdesk/internal/config"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

type recordingModel struct {
	mu    sync.Mutex
	input []*schema.Message
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.input = input
	m.mu.Unlock()
	return schema.AssistantMessage(fmt.Sprintf("saw %d messages", len(input)), nil), nil
}

func (m *recordingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *recordingModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func TestServiceReplyBuildsPrompt(t *testing.T) {
	fake := &recordingModel{}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{SystemPrompt: "Be brief."}, nil)
	require.NoError(t, err)

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}
	reply, err := svc.Reply(context.Background(), chat.Conversation{ID: "c1", Title: "Trip"}, history, "where to?")
	require.NoError(t, err)
	assert.Equal(t, "saw 4 messages", reply)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.input, 4)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, "Be brief.\n\nConversation title: Trip", fake.input[0].Content)
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.Equal(t, schema.Assistant, fake.input[2].Role)
	assert.Equal(t, "where to?", fake.input[3].Content)
}

func TestBuildHistoryMessagesKeepsRecentTurns(t *testing.T) {
	var messages []chat.Message
	for i := 0; i < 15; i++ {
		messages = append(messages, chat.Message{Role: chat.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	history := buildHistoryMessages(messages)
	require.Len(t, history, historyLimit)
	assert.Equal(t, "m5", history[0].Content)
	assert.Equal(t, "m14", history[historyLimit-1].Content)
	assert.Nil(t, buildHistoryMessages(nil))
}

func TestEcho(t *testing.T) {
	reply, err := Echo{}.Reply(context.Background(), chat.Conversation{}, nil, "ping")
	require.NoError(t, err)
	assert.Equal(t, "You said: ping", reply)
}
