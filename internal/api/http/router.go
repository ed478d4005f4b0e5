package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Uploads        *handlers.UploadsHandler
	Categories     *handlers.CategoriesHandler
	Notifications  *handlers.NotificationsHandler
	Admin          *handlers.AdminHandler
	Chatbot        *handlers.ChatbotHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")
	authenticated := cfg.AuthMiddleware.Handle

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/profile", authenticated, cfg.Auth.Profile)
	authGroup.Post("/logout", authenticated, cfg.Auth.Logout)

	tickets := api.Group("/tickets", authenticated, auth.RequireAnyRole())
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/remarks", cfg.Tickets.AddRemark)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	uploads := api.Group("/uploads", authenticated, auth.RequireAnyRole())
	uploads.Post("/ticket/:ticketId", cfg.Uploads.Upload)
	uploads.Get("/:id", cfg.Uploads.Download)

	categories := api.Group("/categories")
	categories.Get("/", cfg.Categories.List)
	categories.Get("/:id", cfg.Categories.Get)
	adminOnly := auth.RequireRole(domain.RoleAdmin)
	categories.Post("/", authenticated, adminOnly, cfg.Categories.Create)
	categories.Put("/:id", authenticated, adminOnly, cfg.Categories.Update)
	categories.Delete("/:id", authenticated, adminOnly, cfg.Categories.Delete)

	notifications := api.Group("/notifications", authenticated, auth.RequireAnyRole())
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Put("/mark-all-read", cfg.Notifications.MarkAllRead)
	notifications.Put("/:id/read", cfg.Notifications.MarkRead)

	if cfg.Chatbot != nil {
		api.Post("/chatbot", cfg.Chatbot.Reply)
	}

	admin := api.Group("/admin", authenticated)
	admin.Get("/dashboard", adminOnly, cfg.Admin.Dashboard)
	admin.Get("/users", adminOnly, cfg.Admin.ListUsers)
	admin.Get("/staff", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Admin.ListStaff)
	admin.Put("/users/:id/role", adminOnly, cfg.Admin.UpdateUserRole)
}
