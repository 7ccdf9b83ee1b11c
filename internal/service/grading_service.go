package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steelycan/autograde/internal/dto"
	"github.com/steelycan/autograde/internal/models"
	"github.com/steelycan/autograde/internal/observability"
	"github.com/steelycan/autograde/internal/render"
	"github.com/steelycan/autograde/internal/repository"
	"github.com/steelycan/autograde/pkg/ai"
)

// Submitter identifies who asked for a grading, taken from the identity provider.
type Submitter struct {
	Name  string
	Email string
}

// FileStorage abstracts the optional object store for answer images.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// GradingService runs one grading submission end to end: normalization,
// rubric grading, rendering, history append, and the warn-only side effects
// (image upload, durable log append).
type GradingService interface {
	Grade(ctx context.Context, session *Session, submitter Submitter, payload dto.GradingSubmission, images []AnswerImage) (dto.GradingResponse, error)
}

type gradingService struct {
	grader       ai.Grader
	normalizer   *Normalizer
	storage      FileStorage
	logRepo      repository.EvaluationLogRepository
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	maxImageSize int64
}

// NewGradingService constructs the grading workflow service. storage and
// logRepo may be nil when those collaborators are not configured.
func NewGradingService(grader ai.Grader, normalizer *Normalizer, storage FileStorage, logRepo repository.EvaluationLogRepository, validate *validator.Validate, maxImageMB int, logger zerolog.Logger) GradingService {
	if maxImageMB <= 0 {
		maxImageMB = 8
	}
	return &gradingService{
		grader:       grader,
		normalizer:   normalizer,
		storage:      storage,
		logRepo:      logRepo,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "grading_service").Logger(),
		tracer:       otel.Tracer("github.com/steelycan/autograde/internal/service/grading"),
		now:          time.Now,
		maxImageSize: int64(maxImageMB) * 1024 * 1024,
	}
}

func (s *gradingService) Grade(ctx context.Context, session *Session, submitter Submitter, payload dto.GradingSubmission, images []AnswerImage) (dto.GradingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.Int("grading.image_count", len(images)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradingResponse{}, err
	}

	style, err := models.ParseGradingStyle(payload.GradingStyle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_style")
		return dto.GradingResponse{}, err
	}

	if err := s.checkImages(images); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image_rejected")
		return dto.GradingResponse{}, err
	}

	question := s.sanitizer.Sanitize(strings.TrimSpace(payload.Question))
	ideal := s.sanitizer.Sanitize(strings.TrimSpace(payload.IdealAnswer))
	typed := s.sanitizer.Sanitize(strings.TrimSpace(payload.StudentAnswer))

	if question == "" || ideal == "" {
		return dto.GradingResponse{}, ErrInputIncomplete
	}

	normalized, err := s.normalizer.Normalize(ctx, question, typed, images)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalization_failed")
		return dto.GradingResponse{}, err
	}

	request := models.GradingRequest{
		Question:            question,
		IdealAnswer:         ideal,
		StudentAnswer:       normalized.GradingText,
		Style:               style,
		AdaptiveInstruction: session.AdaptiveInstruction(),
	}

	result, err := s.grader.Grade(ctx, ai.GradingInput{
		Question:            request.Question,
		IdealAnswer:         request.IdealAnswer,
		StudentAnswer:       request.StudentAnswer,
		Style:               string(request.Style),
		AdaptiveInstruction: request.AdaptiveInstruction,
	})
	if err != nil {
		// A failed grading leaves no trace: no record, no slot mutation.
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_failed")
		return dto.GradingResponse{}, err
	}

	score := models.RubricScore{
		ContentAccuracy:    result.ContentAccuracy,
		Completeness:       result.Completeness,
		LanguageClarity:    result.LanguageClarity,
		DepthUnderstanding: result.DepthUnderstanding,
		StructureCoherence: result.StructureCoherence,
		Justification:      result.Justification,
	}.Clamp()

	report := render.Report(score)
	warnings := normalized.Warnings

	record := &models.EvaluationRecord{
		SubmitterName:  submitter.Name,
		SubmitterEmail: submitter.Email,
		Timestamp:      s.now(),
		Request:        request,
		Question:       question,
		StudentAnswer:  normalized.LogText,
		Score:          score,
		Report:         report,
		State:          models.StatePendingFeedback,
	}

	record.ImageLinks, warnings = s.uploadImages(ctx, images, warnings)
	session.Append(record)

	if warning := appendEvaluationLog(ctx, s.logRepo, s.logger, session.ID, *record); warning != "" {
		warnings = append(warnings, warning)
	}

	observability.Gradings().WithLabelValues(string(style)).Inc()
	span.SetAttributes(attribute.Float64("grading.total", score.Total()))

	marks, justification := MarksAndJustification(*record)

	return dto.GradingResponse{
		Record:        dto.NewEvaluationRecordResponse(*record),
		Marks:         marks,
		Justification: justification,
		ImageNotes:    normalized.Notes,
		Warnings:      warnings,
	}, nil
}

// checkImages verifies uploaded files really are images and fit the size cap.
func (s *gradingService) checkImages(images []AnswerImage) error {
	for i := range images {
		image := &images[i]
		if int64(len(image.Data)) > s.maxImageSize {
			return fmt.Errorf("%w: %s", ErrImageTooLarge, image.Filename)
		}
		detected := mimetype.Detect(image.Data)
		if !strings.HasPrefix(detected.String(), "image/") {
			return fmt.Errorf("%w: %s (%s)", ErrImageTypeNotAllowed, image.Filename, detected.String())
		}
		image.MimeType = detected.String()
	}
	return nil
}

// uploadImages stores answer images when an object store is configured.
// Upload failures degrade to warnings; the grading itself is already complete.
func (s *gradingService) uploadImages(ctx context.Context, images []AnswerImage, warnings []string) ([]string, []string) {
	if s.storage == nil || len(images) == 0 {
		return nil, warnings
	}

	links := make([]string, 0, len(images))
	for _, image := range images {
		url, err := s.storage.Upload(ctx, image.Filename, bytes.NewReader(image.Data))
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", image.Filename).Msg("image upload failed")
			warnings = append(warnings, fmt.Sprintf("image upload failed for %s: %v", image.Filename, err))
			continue
		}
		links = append(links, url)
	}
	return links, warnings
}

// appendEvaluationLog writes one row to the durable log. The sink being down
// is reported as a warning and never fails the in-session workflow.
func appendEvaluationLog(ctx context.Context, repo repository.EvaluationLogRepository, logger zerolog.Logger, sessionID string, record models.EvaluationRecord) string {
	if repo == nil {
		return ""
	}

	row := repository.EvaluationLogRow{
		Submitter:            record.SubmitterName,
		Email:                record.SubmitterEmail,
		SessionID:            sessionID,
		Timestamp:            record.Timestamp,
		Question:             FlattenMultiline(record.Question),
		StudentAnswer:        FlattenMultiline(record.StudentAnswer),
		Evaluation:           FlattenMultiline(record.Report),
		Satisfaction:         string(record.Feedback.Satisfaction),
		DetailFeedback:       FlattenMultiline(record.Feedback.DetailedFeedback),
		GeneratedInstruction: FlattenMultiline(record.Feedback.GeneratedInstruction),
		ImageLinks:           strings.Join(record.ImageLinks, " "),
	}

	if err := repo.Append(ctx, &row); err != nil {
		logger.Warn().Err(err).Msg("durable log append failed")
		return fmt.Sprintf("durable log unavailable: %v", err)
	}
	return ""
}
