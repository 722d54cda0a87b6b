package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Interactions   *handlers.InteractionsHandler
	Tickets        *handlers.TicketsHandler
	Configs        *handlers.ConfigHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1")
	v1.Post("/auth/token", cfg.Auth.Exchange)

	// Signed action tokens carry their own authorization.
	v1.Post("/interactions", cfg.Interactions.Handle)

	tenant := v1.Group("/tenants/:tenantID", cfg.AuthMiddleware.Handle, auth.RequireTenant("tenantID"))
	tenant.Get("/config", cfg.Configs.Get)
	tenant.Put("/config", cfg.Configs.Upsert)
	tenant.Post("/tickets", cfg.Tickets.Create)
	tenant.Get("/tickets/:ticketID", cfg.Tickets.Get)
	tenant.Get("/tickets/:ticketID/actions", cfg.Tickets.ActionTokens)
	tenant.Post("/tickets/:ticketID/claim", cfg.Tickets.Claim)
	tenant.Post("/tickets/:ticketID/transfer", cfg.Tickets.Transfer)
	tenant.Post("/tickets/:ticketID/close", cfg.Tickets.Close)
	tenant.Post("/activity", cfg.Tickets.Activity)
}
