package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/spec-kit/ticket-escalation/internal/api/http/handlers"
	"github.com/spec-kit/ticket-escalation/internal/auth"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/policy"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	PublicTickets  *handlers.PublicTicketsHandler
	Escalations    *handlers.EscalationsHandler
	Rules          *handlers.RulesHandler
	AuthMiddleware *auth.AuthMiddleware
	Matrix         *policy.Matrix
	Metrics        *observability.Metrics
	// PublicRateLimit caps anonymous submissions per client IP per minute.
	// Zero disables the limit.
	PublicRateLimit int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	public := app.Group("/public")
	if cfg.PublicRateLimit > 0 {
		public.Use(limiter.New(limiter.Config{
			Max:        cfg.PublicRateLimit,
			Expiration: time.Minute,
		}))
	}
	public.Post("/tickets", cfg.PublicTickets.CreateTicket)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/", auth.RequireCapability(cfg.Matrix, "can_create", func(c policy.Capabilities) bool { return c.CanCreate }),
		cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", cfg.Tickets.TransitionStatus)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Get("/:id/access", cfg.Tickets.CheckAccess)
	tickets.Get("/:id/escalations", cfg.Escalations.ListForTicket)
	tickets.Post("/:id/escalations", cfg.Escalations.Escalate)

	api.Get("/escalations/:id", cfg.Escalations.GetEscalation)

	rules := api.Group("/escalation-rules")
	rules.Get("/", cfg.Rules.List)
	rules.Post("/", cfg.Rules.Create)
	rules.Post("/sweep", cfg.Rules.Sweep)
	rules.Get("/:id", cfg.Rules.Get)
	rules.Get("/:id/executions", cfg.Rules.Executions)
	rules.Put("/:id", cfg.Rules.Update)
}
