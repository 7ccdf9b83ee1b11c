package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/steelycan/autograde/internal/dto"
	"github.com/steelycan/autograde/internal/service"
	"github.com/steelycan/autograde/internal/utils"
	"github.com/steelycan/autograde/pkg/ai"
)

// GradingHandler manages grading and feedback submissions for a session.
type GradingHandler struct {
	grading  service.GradingService
	feedback service.FeedbackService
	sessions *service.SessionManager
	logger   zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(grading service.GradingService, feedback service.FeedbackService, sessions *service.SessionManager, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:  grading,
		feedback: feedback,
		sessions: sessions,
		logger:   logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/:id/gradings", h.grade)
	router.Post("/:id/gradings/latest/feedback", h.submitFeedback)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradingSubmission
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	images, err := readAnswerImages(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	session := h.sessions.Get(c.Params("id"))
	response, err := h.grading.Grade(c.Context(), session, submitterFromContext(c), payload, images)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading completed", response)
}

func (h *GradingHandler) submitFeedback(c *fiber.Ctx) error {
	var payload dto.FeedbackSubmission
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session := h.sessions.Get(c.Params("id"))
	response, err := h.feedback.Submit(c.Context(), session, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback recorded", response)
}

// readAnswerImages loads the optional multipart "images" files into memory.
func readAnswerImages(c *fiber.Ctx) ([]service.AnswerImage, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}

	files := form.File["images"]
	images := make([]service.AnswerImage, 0, len(files))
	for _, file := range files {
		opened, err := file.Open()
		if err != nil {
			return nil, errors.New("failed to read uploaded image " + file.Filename)
		}
		data, err := io.ReadAll(opened)
		_ = opened.Close()
		if err != nil {
			return nil, errors.New("failed to read uploaded image " + file.Filename)
		}
		images = append(images, service.AnswerImage{
			Filename: file.Filename,
			MimeType: file.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return images, nil
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var gradingErr *ai.GradingError
	switch {
	case errors.Is(err, service.ErrInputIncomplete),
		errors.Is(err, service.ErrFeedbackDetailRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrImageTypeNotAllowed),
		errors.Is(err, service.ErrImageTooLarge):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrVisionUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrNoPendingGrading):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFeedbackAlreadyResolved):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &gradingErr):
		// The stage and the engine's literal message both reach the caller.
		return utils.SendError(c, fiber.StatusBadGateway, gradingErr.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
}
