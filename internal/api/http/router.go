package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Chats          *handlers.ChatsHandler
	Search         *handlers.SearchHandler
	Analytics      *handlers.AnalyticsHandler
	ML             *handlers.MLHandler
	Socket         *handlers.SocketHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadsDir     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadsDir != "" {
		app.Static("/uploads", cfg.UploadsDir)
	}

	api := app.Group("/api")
	api.Post("/auth/register", cfg.Users.Register)
	api.Post("/auth/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)

	protected.Post("/chats", cfg.Chats.Open)
	protected.Get("/chats", cfg.Chats.List)
	protected.Get("/chats/:id", cfg.Chats.Get)
	protected.Get("/chats/:id/messages", cfg.Chats.ListMessages)
	protected.Post("/chats/:id/messages", cfg.Chats.SendMessage)
	protected.Patch("/chats/:id/status", auth.RequireStaff(), cfg.Chats.UpdateStatus)
	protected.Post("/chats/:id/agents", auth.RequireStaff(), cfg.Chats.AssignAgent)

	protected.Get("/search/chats", cfg.Search.Search)
	protected.Get("/search/analytics/summary", auth.RequireStaff(), cfg.Analytics.Summary)

	protected.Post("/ml/sentiment", auth.RequireStaff(), cfg.ML.Sentiment)
	protected.Post("/ml/suggestions", auth.RequireStaff(), cfg.ML.SmartReplies)

	app.Use("/ws", cfg.Socket.Upgrade)
	app.Get("/ws", cfg.Socket.Serve())
}
