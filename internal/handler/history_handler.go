package handler

import (
	"bytes"
	"encoding/csv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/steelycan/autograde/internal/dto"
	"github.com/steelycan/autograde/internal/service"
	"github.com/steelycan/autograde/internal/utils"
)

// HistoryHandler exposes a session's evaluation history and its CSV export.
type HistoryHandler struct {
	sessions *service.SessionManager
	logger   zerolog.Logger
}

// NewHistoryHandler builds a history handler instance.
func NewHistoryHandler(sessions *service.SessionManager, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		sessions: sessions,
		logger:   logger.With().Str("component", "history_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *HistoryHandler) Register(router fiber.Router) {
	router.Get("/:id/history", h.list)
	router.Get("/:id/history/export", h.export)
}

func (h *HistoryHandler) list(c *fiber.Ctx) error {
	session := h.sessions.Get(c.Params("id"))

	records := session.All()
	response := dto.HistoryResponse{
		SessionID: session.ID,
		Records:   make([]dto.EvaluationRecordResponse, 0, len(records)),
	}
	for _, record := range records {
		response.Records = append(response.Records, dto.NewEvaluationRecordResponse(record))
	}

	return utils.SendSuccess(c, "history retrieved", response)
}

func (h *HistoryHandler) export(c *fiber.Ctx) error {
	session := h.sessions.Get(c.Params("id"))

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.WriteAll(session.ToTable()); err != nil {
		h.logger.Error().Err(err).Str("session_id", session.ID).Msg("csv export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to export history")
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="grading_history.csv"`)
	return c.Send(buffer.Bytes())
}

// Identity returns a handler echoing the submitter bound to the request.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		submitter := submitterFromContext(c)
		return utils.SendSuccess(c, "identity", dto.IdentityResponse{
			Name:  submitter.Name,
			Email: submitter.Email,
		})
	}
}
