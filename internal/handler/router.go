package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/handler/auth"
	"github.com/zhouzirui/chatdesk/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/chatdesk/internal/middleware"
	accountService "github.com/zhouzirui/chatdesk/internal/service/account"
	aiService "github.com/zhouzirui/chatdesk/internal/service/ai"
	chatService "github.com/zhouzirui/chatdesk/internal/service/chat"
	"github.com/zhouzirui/chatdesk/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(accounts *accountService.Service, chatSvc *chatService.Service, responder aiService.Responder, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	authHandler := auth.New(accounts, logger)
	chatHandler := chat.New(chatSvc, responder, logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Login and register are public
	authHandler.RegisterRoutes(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middlewarePkg.Bearer(accounts))
		chatHandler.RegisterRoutes(protected)
	})

	return r
}
