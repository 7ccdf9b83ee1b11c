package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/steelycan/autograde/internal/config"
	"github.com/steelycan/autograde/internal/handler"
	"github.com/steelycan/autograde/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler *handler.GradingHandler
	HistoryHandler *handler.HistoryHandler
	JWTMiddleware  fiber.Handler
	VisionEnabled  bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.VisionEnabled))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api.Get("/session", jwtMiddleware, handler.Identity())

	sessions := api.Group("/sessions", jwtMiddleware)
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(sessions)
	}
	if deps.HistoryHandler != nil {
		deps.HistoryHandler.Register(sessions)
	}
}
