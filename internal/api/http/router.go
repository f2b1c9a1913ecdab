package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/btangonan/calm-productivity-app-sub002/internal/api/http/handlers"
	"github.com/btangonan/calm-productivity-app-sub002/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Cache          *handlers.CacheHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The session gateway accepts every
// method on /auth and enforces per-action methods itself, so wrong-method
// calls answer 405 rather than 404.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.All("/auth", cfg.Session.Dispatch)

	app.Post("/cache/invalidate", cfg.AuthMiddleware.Handle, cfg.Cache.Invalidate)
}
