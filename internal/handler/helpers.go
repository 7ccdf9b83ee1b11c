package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/steelycan/autograde/internal/middleware"
	"github.com/steelycan/autograde/internal/service"
)

func submitterFromContext(c *fiber.Ctx) service.Submitter {
	submitter := service.Submitter{}
	if v, ok := c.Locals("user_name").(string); ok {
		submitter.Name = strings.TrimSpace(v)
	}
	if v, ok := c.Locals("user_email").(string); ok {
		submitter.Email = strings.TrimSpace(v)
	}
	return submitter
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
