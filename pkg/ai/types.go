package ai

import (
	"context"
	"fmt"
)

// GradingInput carries everything embedded into one rubric grading prompt.
type GradingInput struct {
	Question            string
	IdealAnswer         string
	StudentAnswer       string
	Style               string
	AdaptiveInstruction string
}

// GradingResult holds the five structured sub-scores plus the justification
// text. Scores come only from the engine's structured fields, never from its
// prose, and the caller recomputes the total.
type GradingResult struct {
	ContentAccuracy    float64                `json:"content_accuracy"`
	Completeness       float64                `json:"completeness"`
	LanguageClarity    float64                `json:"language_clarity"`
	DepthUnderstanding float64                `json:"depth_understanding"`
	StructureCoherence float64                `json:"structure_coherence"`
	Justification      string                 `json:"justification"`
	Raw                map[string]interface{} `json:"raw,omitempty"`
}

// Grader describes a model capable of rubric-constrained answer grading.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingResult, error)
}

// RefinementInput carries the material the refiner synthesizes an adaptive
// instruction from.
type RefinementInput struct {
	Question           string
	IdealAnswer        string
	StudentAnswer      string
	RenderedEvaluation string
	Detail             string
}

// NoImprovementSentinel is the literal the refiner emits when the reviewer's
// complaint yields no generalizable instruction.
const NoImprovementSentinel = "NO_IMPROVEMENT_NEEDED"

// Refiner turns reviewer dissatisfaction into a short adaptive instruction,
// or the sentinel when nothing generalizable can be learned.
type Refiner interface {
	Refine(ctx context.Context, input RefinementInput) (string, error)
}

// VisionExtractor pulls grading-relevant text out of an answer image. It is an
// optional collaborator; callers must check for its absence before use.
type VisionExtractor interface {
	ExtractText(ctx context.Context, image []byte, mimeType, contextText string) (string, error)
}

// GradingError reports a failed grading engine invocation: transport errors,
// unparseable output, or output rejected by schema validation.
type GradingError struct {
	Reason string
	Err    error
}

func (e *GradingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grading engine: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("grading engine: %s", e.Reason)
}

func (e *GradingError) Unwrap() error {
	return e.Err
}
