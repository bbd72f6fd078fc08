package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/api/http/handlers"
	"github.com/deskflow/service-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AgentTickets   *handlers.AgentTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Auth.RegisterCustomer)
	authGroup.Post("/customers/login", cfg.Auth.LoginCustomer)
	authGroup.Post("/agents/register", cfg.Auth.RegisterAgent)
	authGroup.Post("/agents/login", cfg.Auth.LoginAgent)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	session.Post("/logout", cfg.Auth.Logout)
	session.Post("/password/change", cfg.Auth.ChangePassword)
	session.Get("/me", cfg.Auth.Me)
	session.Patch("/me", cfg.Auth.UpdateProfile)

	customer := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireCustomer())
	customer.Post("/", cfg.Tickets.CreateTicket)
	customer.Get("/", cfg.Tickets.ListTickets)
	customer.Get("/:id", cfg.Tickets.GetTicket)
	customer.Get("/:id/messages", cfg.Tickets.ListMessages)
	customer.Post("/:id/messages", cfg.Tickets.AddMessage)

	agent := app.Group("/agent/tickets", cfg.AuthMiddleware.Handle, auth.RequireAgent())
	agent.Get("/", cfg.AgentTickets.ListAssigned)
	agent.Get("/all", cfg.AgentTickets.ListAll)
	agent.Get("/:id", cfg.Tickets.GetTicket)
	agent.Patch("/:id/priority", cfg.AgentTickets.SetPriority)
	agent.Post("/:id/resolve", cfg.AgentTickets.Resolve)
	agent.Post("/:id/claim", cfg.AgentTickets.Claim)
	agent.Post("/:id/assign", cfg.AgentTickets.Assign)
	agent.Get("/:id/messages", cfg.Tickets.ListMessages)
	agent.Post("/:id/messages", cfg.Tickets.AddMessage)
	agent.Get("/:id/history", cfg.AgentTickets.History)
}
