package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssoworks/sso-service/internal/api/http/handlers"
	"github.com/ssoworks/sso-service/internal/auth"
	"github.com/ssoworks/sso-service/internal/observability"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	SSO            *handlers.SSOHandler
	AuthMiddleware *auth.AuthMiddleware
	InternalTokens *auth.TokenManager
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	sso := app.Group("/sso")

	internal := sso.Group("/internal", auth.RequireInternalCaller(cfg.InternalTokens))
	internal.Delete("/user/:user", cfg.SSO.RevokeUserTokens)
	internal.Post("/session", cfg.SSO.IssueSessionToken)

	me := sso.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	me.Get("/me", cfg.SSO.Me)
	me.Get("/user", cfg.SSO.Me)
	me.Delete("/me", cfg.SSO.RevokeCurrentToken)
	me.Get("/me/apitoken", cfg.SSO.GetAPIToken)
	me.Post("/me/apitoken", cfg.SSO.CreateAPIToken)

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"method": c.Method(), "path": c.Path()})
	})
}
