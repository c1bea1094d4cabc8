package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/auth-service/internal/api/http/handlers"
	"github.com/Behnamfe76/auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	JWKS           *handlers.JWKSHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", handlers.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/.well-known/jwks.json", cfg.JWKS.Keys)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole()}
	authGroup.Get("/self", append(authenticated, cfg.Auth.Self)...)
	authGroup.Post("/logout", append(authenticated, cfg.Auth.Logout)...)
}
