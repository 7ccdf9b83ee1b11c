package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autograde",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI engine requests",
	}, []string{"operation", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autograde",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI engine requests",
	}, []string{"operation", "model"})

	aiRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autograde",
		Subsystem: "ai",
		Name:      "json_repairs_total",
		Help:      "Number of grading responses that needed JSON repair",
	})
)

// gradingResponseSchema rejects structurally wrong engine output before field
// coercion. Sub-scores may be numbers or numeric strings; missing fields are
// tolerated and default to zero during coercion.
const gradingResponseSchema = `{
	"type": "object",
	"properties": {
		"content_accuracy": {"type": ["number", "string", "null"]},
		"completeness": {"type": ["number", "string", "null"]},
		"language_clarity": {"type": ["number", "string", "null"]},
		"depth_understanding": {"type": ["number", "string", "null"]},
		"structure_coherence": {"type": ["number", "string", "null"]},
		"justification": {"type": ["string", "null"]}
	}
}`

var compiledGradingSchema = jsonschema.MustCompileString("grading_response.json", gradingResponseSchema)

// OpenAIConfig defines configuration options for the OpenAI engine.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEngine implements Grader, Refiner, and VisionExtractor against the
// OpenAI chat completion API.
type OpenAIEngine struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEngine builds a new engine using the provided configuration.
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/steelycan/autograde/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_engine").Logger(),
	}, nil
}

// Grade sends the rubric grading request and parses the structured response.
func (e *OpenAIEngine) Grade(parent context.Context, input GradingInput) (GradingResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("grading.style", input.Style),
		attribute.Bool("grading.adaptive_instruction", input.AdaptiveInstruction != ""),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildGradingPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues("grade", e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return GradingResult{}, e.gradeFailure(span, "transport error", err)
	}
	if len(resp.Choices) == 0 {
		return GradingResult{}, e.gradeFailure(span, "no choices returned", nil)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseGradingResponse(content)
	if err != nil {
		return GradingResult{}, e.gradeFailure(span, "malformed structured output", err)
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	span.SetAttributes(attribute.Float64("grading.total",
		result.ContentAccuracy+result.Completeness+result.LanguageClarity+result.DepthUnderstanding+result.StructureCoherence))

	return result, nil
}

func (e *OpenAIEngine) gradeFailure(span trace.Span, reason string, err error) error {
	aiFailures.WithLabelValues("grade", e.cfg.Model).Inc()
	failure := &GradingError{Reason: reason, Err: err}
	span.RecordError(failure)
	span.SetStatus(codes.Error, reason)
	e.logger.Error().Err(failure).Msg("grading request failed")
	return failure
}

// Refine asks for an adaptive instruction derived from reviewer feedback.
func (e *OpenAIEngine) Refine(parent context.Context, input RefinementInput) (string, error) {
	ctx, span := e.tracer.Start(parent, "openai.refine", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: refinerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRefinementPrompt(input)},
		},
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues("refine", e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues("refine", e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai refine: %w", err)
	}
	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues("refine", e.cfg.Model).Inc()
		err := fmt.Errorf("no choices returned from openai")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExtractText runs vision extraction over a single answer image.
func (e *OpenAIEngine) ExtractText(parent context.Context, image []byte, mimeType, contextText string) (string, error) {
	ctx, span := e.tracer.Start(parent, "openai.extract_text", trace.WithAttributes(
		attribute.String("model", e.cfg.VisionModel),
		attribute.String("image.mime_type", mimeType),
		attribute.Int("image.bytes", len(image)),
	))
	defer span.End()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	request := openai.ChatCompletionRequest{
		Model:     e.cfg.VisionModel,
		MaxTokens: e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildVisionPrompt(contextText)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues("extract", e.cfg.VisionModel).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues("extract", e.cfg.VisionModel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai extract: %w", err)
	}
	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues("extract", e.cfg.VisionModel).Inc()
		err := fmt.Errorf("no choices returned from openai")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parseGradingResponse turns raw engine output into a GradingResult. Malformed
// JSON gets one repair attempt; payloads rejected by the schema fail outright.
// Individual sub-scores that are missing or non-numeric default to zero, since
// engines tend to omit criteria they scored at zero.
func parseGradingResponse(content string) (GradingResult, error) {
	var payload interface{}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return GradingResult{}, fmt.Errorf("parse grading json: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return GradingResult{}, fmt.Errorf("parse repaired grading json: %w", err)
		}
		aiRepairs.Inc()
	}

	if err := compiledGradingSchema.Validate(payload); err != nil {
		return GradingResult{}, fmt.Errorf("grading response schema: %w", err)
	}

	fields, ok := payload.(map[string]interface{})
	if !ok {
		return GradingResult{}, fmt.Errorf("grading response is not a JSON object")
	}

	justification, _ := fields["justification"].(string)

	return GradingResult{
		ContentAccuracy:    coerceScore(fields["content_accuracy"]),
		Completeness:       coerceScore(fields["completeness"]),
		LanguageClarity:    coerceScore(fields["language_clarity"]),
		DepthUnderstanding: coerceScore(fields["depth_understanding"]),
		StructureCoherence: coerceScore(fields["structure_coherence"]),
		Justification:      strings.TrimSpace(justification),
	}, nil
}

func coerceScore(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
		return 0
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			return parsed
		}
		return 0
	default:
		return 0
	}
}
