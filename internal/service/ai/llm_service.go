package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/config"
	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
)

// historyLimit caps how many earlier turns are sent to the model.
const historyLimit = 10

// Responder produces the assistant reply to the newest user message of a
// conversation. history excludes that message.
type Responder interface {
	Reply(ctx context.Context, conv chat.Conversation, history []chat.Message, userMessage string) (string, error)
}

// Service answers with an eino chain: system prompt, recent history, user query.
type Service struct {
	cfg    config.AIConfig
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewService creates a Service backed by the Ark model described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger)
}

// NewServiceWithModel builds the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    cfg,
		chain:  runnable,
		logger: logging.OrNop(logger).Named("ai"),
	}, nil
}

// Reply runs the chain for one user turn.
func (s *Service) Reply(ctx context.Context, conv chat.Conversation, history []chat.Message, userMessage string) (string, error) {
	input := map[string]any{
		"system":  s.buildSystemPrompt(conv),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Info("generated response",
		zap.String("chat_id", conv.ID.String()),
		zap.Int("length", len(response.Content)))
	return response.Content, nil
}

func (s *Service) buildSystemPrompt(conv chat.Conversation) string {
	base := s.cfg.SystemPrompt
	if base == "" {
		base = config.DefaultSystemPrompt
	}
	if conv.Title == "" {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString("\n\nConversation title: ")
	builder.WriteString(conv.Title)
	return builder.String()
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

// Echo is the Responder used when no model is configured.
type Echo struct{}

// Reply repeats the user's message back.
func (Echo) Reply(_ context.Context, _ chat.Conversation, _ []chat.Message, userMessage string) (string, error) {
	return "You said: " + userMessage, nil
}
