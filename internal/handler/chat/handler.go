package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/middleware"
	"github.com/zhouzirui/chatdesk/internal/model/chat"
	"github.com/zhouzirui/chatdesk/internal/service/ai"
	chatService "github.com/zhouzirui/chatdesk/internal/service/chat"
	"github.com/zhouzirui/chatdesk/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	responder ai.Responder
	logger    *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, responder ai.Responder, logger *zap.Logger) *Handler {
	if responder == nil {
		responder = ai.Echo{}
	}
	return &Handler{
		chatSvc:   chatSvc,
		responder: responder,
		logger:    logging.OrNop(logger).Named("chat"),
	}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载认证中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats/", h.handleListChats)
	r.Post("/chats/", h.handleCreateChat)
	r.Get("/chats/{chatID}/", h.handleGetChat)
	r.Post("/chats/{chatID}/messages/", h.handlePostMessage)
}

// handleListChats 列出当前用户的会话
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	chats, err := h.chatSvc.ListChats(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chats)
}

// handleCreateChat 创建会话
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var payload chat.CreateRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	conv, err := h.chatSvc.CreateChat(r.Context(), user.ID, payload.Title)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

// handleGetChat 获取单个会话，include_messages=true 时附带消息
func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conv, err := h.chatSvc.GetChat(r.Context(), user.ID, chat.ID(chi.URLParam(r, "chatID")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if r.URL.Query().Get("include_messages") != "true" {
		conv.Messages = nil
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

// handlePostMessage 保存用户消息并返回助手回复
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var payload chat.NewRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}
	if payload.Role == "" {
		payload.Role = chat.RoleUser
	}
	if payload.Role != chat.RoleUser {
		utils.RespondError(w, http.StatusBadRequest, "only user messages can be posted")
		return
	}

	ctx := r.Context()
	chatID := chat.ID(chi.URLParam(r, "chatID"))

	conv, err := h.chatSvc.GetChat(ctx, user.ID, chatID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	history, err := h.chatSvc.LoadTranscript(ctx, user.ID, chatID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if _, err := h.chatSvc.AppendMessage(ctx, user.ID, chatID, chat.RoleUser, payload.Content); err != nil {
		h.respondServiceError(w, err)
		return
	}

	content, err := h.responder.Reply(ctx, conv, history, payload.Content)
	if err != nil {
		h.logger.Error("assistant reply failed", zap.String("chat_id", chatID.String()), zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "assistant unavailable: "+err.Error())
		return
	}

	reply, err := h.chatSvc.AppendMessage(ctx, user.ID, chatID, chat.RoleAssistant, content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, reply)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrChatNotFound):
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, chatService.ErrTitleRequired),
		errors.Is(err, chatService.ErrContentRequired),
		errors.Is(err, chatService.ErrInvalidRole),
		errors.Is(err, chatService.ErrOwnerRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("chat service failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
