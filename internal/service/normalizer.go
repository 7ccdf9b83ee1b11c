package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/steelycan/autograde/internal/models"
	"github.com/steelycan/autograde/pkg/ai"
)

// ImageContextHeader delimits image-derived text inside the grading answer.
const ImageContextHeader = "[IMAGE-DERIVED CONTEXT]"

const answerSeparator = "\n\n"

// AnswerImage is one uploaded answer image ready for extraction.
type AnswerImage struct {
	Filename string
	MimeType string
	Data     []byte
}

// NormalizedAnswer is the normalizer's output: the text fed to grading, the
// text persisted to logs, per-image notes, and non-fatal warnings.
type NormalizedAnswer struct {
	GradingText string
	LogText     string
	Notes       []models.ImageNote
	Warnings    []string
}

// Normalizer merges typed text and image-derived transcriptions into one
// answer string. The vision engine is optional; when absent, submissions that
// include images are rejected outright.
type Normalizer struct {
	vision ai.VisionExtractor
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewNormalizer builds an answer normalizer. vision may be nil.
func NewNormalizer(vision ai.VisionExtractor, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		vision: vision,
		logger: logger.With().Str("component", "answer_normalizer").Logger(),
		tracer: otel.Tracer("github.com/steelycan/autograde/internal/service/normalizer"),
	}
}

// VisionAvailable reports whether image answers can be processed.
func (n *Normalizer) VisionAvailable() bool {
	return n.vision != nil
}

// Normalize produces the grading and log texts for a submission. Extraction
// runs concurrently per image; a failed extraction contributes empty text and
// a warning but never cancels the other images.
func (n *Normalizer) Normalize(ctx context.Context, question, typed string, images []AnswerImage) (NormalizedAnswer, error) {
	ctx, span := n.tracer.Start(ctx, "normalizer.normalize", trace.WithAttributes(
		attribute.Int("answer.image_count", len(images)),
		attribute.Bool("answer.has_typed_text", strings.TrimSpace(typed) != ""),
	))
	defer span.End()

	typed = strings.TrimSpace(typed)
	if typed == "" && len(images) == 0 {
		return NormalizedAnswer{}, ErrInputIncomplete
	}
	if len(images) > 0 && n.vision == nil {
		return NormalizedAnswer{}, ErrVisionUnavailable
	}

	extracted := make([]string, len(images))
	failures := make([]error, len(images))

	var wg sync.WaitGroup
	for i, image := range images {
		wg.Add(1)
		go func(i int, image AnswerImage) {
			defer wg.Done()
			text, err := n.vision.ExtractText(ctx, image.Data, image.MimeType, question)
			if err != nil {
				failures[i] = err
				return
			}
			extracted[i] = strings.TrimSpace(text)
		}(i, image)
	}
	wg.Wait()

	result := NormalizedAnswer{}
	derived := make([]string, 0, len(images))
	for i, image := range images {
		if failures[i] != nil {
			n.logger.Warn().Err(failures[i]).Str("filename", image.Filename).Msg("image extraction failed")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("extraction failed for %s: %v", image.Filename, failures[i]))
			result.Notes = append(result.Notes, models.ImageNote{Filename: image.Filename, Failed: true})
			continue
		}
		result.Notes = append(result.Notes, models.ImageNote{
			Filename: image.Filename,
			Excerpt:  models.Excerpt(extracted[i]),
		})
		if extracted[i] != "" {
			derived = append(derived, extracted[i])
		}
	}

	imageText := strings.Join(derived, answerSeparator)

	result.GradingText = typed
	if imageText != "" {
		block := ImageContextHeader + "\n" + imageText
		if typed == "" {
			result.GradingText = block
		} else {
			result.GradingText = typed + answerSeparator + block
		}
	}

	// The persisted log never stores raw image bytes, only derived text.
	result.LogText = typed
	if result.LogText == "" {
		result.LogText = imageText
	}

	span.SetAttributes(
		attribute.Int("answer.extraction_failures", len(result.Warnings)),
		attribute.Int("answer.grading_text_len", len(result.GradingText)),
	)

	return result, nil
}
