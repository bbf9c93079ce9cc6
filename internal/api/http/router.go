package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zapret-labs/tracker/internal/api/http/handlers"
	"github.com/zapret-labs/tracker/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	Presence       *handlers.PresenceHandler
	Users          *handlers.UsersHandler
	Tags           *handlers.TagsHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadDir      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/webapp", cfg.Auth.WebAppLogin)
	authGroup.Post("/dev", cfg.Auth.DevLogin)
	authGroup.Post("/request", cfg.Auth.RequestLogin)
	authGroup.Post("/check", cfg.Auth.CheckLogin)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Get("/me", cfg.Auth.Me)
	authProtected.Post("/logout", cfg.Auth.Logout)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/kanban", cfg.Tickets.Kanban)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/votes", cfg.Tickets.MyVotes)
	tickets.Get("/subscriptions", cfg.Tickets.MySubscriptions)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.Delete)
	tickets.Post("/:id/vote", cfg.Tickets.ToggleVote)
	tickets.Post("/:id/subscribe", cfg.Tickets.Subscribe)
	tickets.Delete("/:id/subscribe", cfg.Tickets.Unsubscribe)
	tickets.Get("/:id/messages", cfg.Messages.List)
	tickets.Post("/:id/messages", cfg.Messages.Add)

	messages := protected.Group("/messages")
	messages.Patch("/:messageId", cfg.Messages.Edit)
	messages.Delete("/:messageId", cfg.Messages.Delete)
	messages.Post("/:messageId/reactions", cfg.Messages.ToggleReaction)

	presence := protected.Group("/presence")
	presence.Post("/heartbeat", cfg.Presence.Heartbeat)
	presence.Get("/online", cfg.Presence.Online)
	presence.Get("/stream", cfg.Presence.Stream)
	presence.Post("/typing", cfg.Messages.Typing)
	presence.Get("/typing/:ticketId", cfg.Messages.TypingList)

	users := protected.Group("/users")
	users.Get("/", cfg.Users.Directory)
	users.Patch("/settings", cfg.Users.UpdateSettings)
	users.Post("/avatar/refresh", cfg.Users.RefreshAvatar)

	tags := protected.Group("/tags")
	tags.Get("/", cfg.Tags.List)
	tags.Post("/", auth.RequireAdmin(), cfg.Tags.Create)
	tags.Delete("/:id", auth.RequireAdmin(), cfg.Tags.Delete)
}
