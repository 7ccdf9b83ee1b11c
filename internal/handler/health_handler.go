package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/steelycan/autograde/internal/config"
	"github.com/steelycan/autograde/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Vision      bool      `json:"vision_enabled"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, visionEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Vision:      visionEnabled,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
