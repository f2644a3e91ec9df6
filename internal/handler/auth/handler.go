package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/middleware"
	"github.com/zhouzirui/chatdesk/internal/service/account"
	"github.com/zhouzirui/chatdesk/pkg/utils"
)

// Handler 用户注册与登录的HTTP处理器
type Handler struct {
	accounts *account.Service
	logger   *zap.Logger
}

// New 创建认证处理器
func New(accounts *account.Service, logger *zap.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		logger:   logging.OrNop(logger).Named("auth"),
	}
}

// RegisterRoutes 注册用户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/login", h.handleLogin)
	r.Post("/users/register", h.handleRegister)
	r.Post("/users/logout", h.handleLogout)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin 校验凭证并签发 token
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	token, err := h.accounts.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			utils.RespondError(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleRegister 创建账号，不返回 token
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	user, err := h.accounts.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	switch {
	case errors.Is(err, account.ErrMissingFields):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, account.ErrEmailTaken):
		utils.RespondError(w, http.StatusBadRequest, "Email already registered")
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))
	utils.RespondJSON(w, http.StatusCreated, user)
}

// handleLogout 吊销请求携带的 token，重复吊销同样返回 204
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		utils.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	h.accounts.Revoke(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}
