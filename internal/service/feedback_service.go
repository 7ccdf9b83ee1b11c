package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steelycan/autograde/internal/dto"
	"github.com/steelycan/autograde/internal/models"
	"github.com/steelycan/autograde/internal/observability"
	"github.com/steelycan/autograde/internal/repository"
	"github.com/steelycan/autograde/pkg/ai"
)

// FeedbackService drives the feedback cycle of the latest grading in a
// session. A satisfied verdict clears the adaptive-instruction slot; a
// dissatisfied verdict with detail invokes the refinement engine and replaces
// the slot with whatever instruction it synthesizes.
type FeedbackService interface {
	Submit(ctx context.Context, session *Session, payload dto.FeedbackSubmission) (dto.FeedbackResponse, error)
}

type feedbackService struct {
	refiner   ai.Refiner
	logRepo   repository.EvaluationLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewFeedbackService constructs the feedback controller. logRepo may be nil.
func NewFeedbackService(refiner ai.Refiner, logRepo repository.EvaluationLogRepository, validate *validator.Validate, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		refiner:   refiner,
		logRepo:   logRepo,
		validator: validate,
		logger:    logger.With().Str("component", "feedback_service").Logger(),
		tracer:    otel.Tracer("github.com/steelycan/autograde/internal/service/feedback"),
	}
}

func (s *feedbackService) Submit(ctx context.Context, session *Session, payload dto.FeedbackSubmission) (dto.FeedbackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "feedback.submit", trace.WithAttributes(
		attribute.String("session.id", session.ID),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.FeedbackResponse{}, err
	}

	record := session.Latest()
	if record == nil {
		span.SetStatus(codes.Error, "no_pending_grading")
		return dto.FeedbackResponse{}, ErrNoPendingGrading
	}
	if record.State == models.StateResolved {
		span.SetStatus(codes.Error, "already_resolved")
		return dto.FeedbackResponse{}, ErrFeedbackAlreadyResolved
	}

	detail := strings.TrimSpace(payload.Detail)

	if *payload.Satisfied {
		// A satisfied grading does not imply the learned instruction should
		// persist; the slot resets for the next cycle.
		session.ClearAdaptiveInstruction()
		warnings := s.resolve(ctx, session, record, models.FeedbackRecord{Satisfaction: models.SatisfactionYes}, nil)
		observability.Feedback().WithLabelValues("satisfied").Inc()
		span.SetAttributes(attribute.String("feedback.outcome", "satisfied"))
		return s.response(session, record, warnings), nil
	}

	if detail == "" {
		// Stays pending; the caller re-prompts for detail. No slot mutation,
		// nothing recorded.
		span.SetStatus(codes.Error, "detail_required")
		return dto.FeedbackResponse{}, ErrFeedbackDetailRequired
	}

	feedback := models.FeedbackRecord{
		Satisfaction:     models.SatisfactionNo,
		DetailedFeedback: detail,
	}

	var warnings []string
	instruction, err := s.refiner.Refine(ctx, ai.RefinementInput{
		Question:           record.Request.Question,
		IdealAnswer:        record.Request.IdealAnswer,
		StudentAnswer:      record.Request.StudentAnswer,
		RenderedEvaluation: record.Report,
		Detail:             detail,
	})
	outcome := "instruction_replaced"
	switch {
	case err != nil:
		// Refinement failure never aborts the feedback submission; the
		// verdict and detail are still recorded.
		s.logger.Warn().Err(err).Msg("refinement failed")
		span.RecordError(err)
		session.ClearAdaptiveInstruction()
		warnings = append(warnings, fmt.Sprintf("refinement failed: %v", err))
		outcome = "refinement_failed"
	case isNoImprovement(instruction):
		session.ClearAdaptiveInstruction()
		outcome = "no_improvement"
	default:
		instruction = strings.TrimSpace(instruction)
		session.SetAdaptiveInstruction(instruction)
		feedback.GeneratedInstruction = instruction
	}
	observability.Feedback().WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("feedback.outcome", outcome))

	warnings = s.resolve(ctx, session, record, feedback, warnings)
	return s.response(session, record, warnings), nil
}

// resolve writes the feedback sub-record exactly once, marks the record
// terminal, and mirrors the completed cycle to the durable log.
func (s *feedbackService) resolve(ctx context.Context, session *Session, record *models.EvaluationRecord, feedback models.FeedbackRecord, warnings []string) []string {
	record.Feedback = feedback
	record.State = models.StateResolved

	if warning := appendEvaluationLog(ctx, s.logRepo, s.logger, session.ID, *record); warning != "" {
		warnings = append(warnings, warning)
	}
	return warnings
}

func (s *feedbackService) response(session *Session, record *models.EvaluationRecord, warnings []string) dto.FeedbackResponse {
	return dto.FeedbackResponse{
		Satisfaction:         string(record.Feedback.Satisfaction),
		DetailedFeedback:     record.Feedback.DetailedFeedback,
		GeneratedInstruction: record.Feedback.GeneratedInstruction,
		AdaptiveInstruction:  session.AdaptiveInstruction(),
		Warnings:             warnings,
	}
}

func isNoImprovement(instruction string) bool {
	instruction = strings.TrimSpace(instruction)
	return instruction == "" || strings.EqualFold(instruction, ai.NoImprovementSentinel)
}
