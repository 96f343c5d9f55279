package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-access/internal/api/http/handlers"
	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	Leads      *handlers.LeadsHandler
	StaffRoles *handlers.StaffRolesHandler
	Gate       *auth.Gate
	// LeadFetcher loads a lead for the ownership check on /api/leads/:id.
	LeadFetcher auth.ResourceFetcher
}

// RegisterRoutes wires HTTP routes. The gate runs for every request and
// applies the route table before any handler.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.Auth.Me)

	api := app.Group("/api")
	api.Get("/leads", cfg.Leads.List)
	api.Post("/leads", cfg.Leads.Create)

	owned := cfg.Gate.RequireOwnership("id", cfg.LeadFetcher)
	api.Get("/leads/:id", owned, cfg.Leads.Get)
	api.Put("/leads/:id", owned, cfg.Leads.Update)
	api.Delete("/leads/:id", owned, cfg.Leads.Delete)

	admin := api.Group("/admin", cfg.Gate.RequireRoles(domain.StaffRoleAdmin))
	admin.Get("/staff-roles/:userId", cfg.StaffRoles.Get)
	admin.Put("/staff-roles/:userId", cfg.StaffRoles.Set)
	admin.Delete("/staff-roles/:userId", cfg.StaffRoles.Delete)
	admin.Post("/users", cfg.StaffRoles.ProvisionUser)
}
