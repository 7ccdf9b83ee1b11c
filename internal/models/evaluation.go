package models

import (
	"fmt"
	"strings"
	"time"
)

// GradingStyle controls how generously partial credit is awarded.
type GradingStyle string

const (
	StyleStrict   GradingStyle = "strict"
	StyleBalanced GradingStyle = "balanced"
	StyleLenient  GradingStyle = "lenient"
)

// ParseGradingStyle normalizes user input into a known grading style.
func ParseGradingStyle(value string) (GradingStyle, error) {
	switch GradingStyle(strings.ToLower(strings.TrimSpace(value))) {
	case StyleStrict:
		return StyleStrict, nil
	case StyleBalanced, "":
		return StyleBalanced, nil
	case StyleLenient:
		return StyleLenient, nil
	default:
		return "", fmt.Errorf("unknown grading style %q", value)
	}
}

// Rubric criterion caps. The five criteria always sum to ten points.
const (
	CapContentAccuracy    = 3.0
	CapCompleteness       = 2.0
	CapLanguageClarity    = 2.0
	CapDepthUnderstanding = 2.0
	CapStructureCoherence = 1.0
	RubricMaxTotal        = 10.0
)

// RubricScore holds the five validated sub-scores plus the grader's justification.
// The total is never stored; it is always recomputed from the sub-scores.
type RubricScore struct {
	ContentAccuracy    float64 `json:"content_accuracy"`
	Completeness       float64 `json:"completeness"`
	LanguageClarity    float64 `json:"language_clarity"`
	DepthUnderstanding float64 `json:"depth_understanding"`
	StructureCoherence float64 `json:"structure_coherence"`
	Justification      string  `json:"justification"`
}

// Total sums the five sub-scores. Engine-reported totals are ignored everywhere.
func (s RubricScore) Total() float64 {
	return s.ContentAccuracy + s.Completeness + s.LanguageClarity + s.DepthUnderstanding + s.StructureCoherence
}

// Clamp bounds every sub-score to [0, cap] so a misbehaving engine can never
// push the total outside [0, 10].
func (s RubricScore) Clamp() RubricScore {
	s.ContentAccuracy = clamp(s.ContentAccuracy, CapContentAccuracy)
	s.Completeness = clamp(s.Completeness, CapCompleteness)
	s.LanguageClarity = clamp(s.LanguageClarity, CapLanguageClarity)
	s.DepthUnderstanding = clamp(s.DepthUnderstanding, CapDepthUnderstanding)
	s.StructureCoherence = clamp(s.StructureCoherence, CapStructureCoherence)
	return s
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// GradingRequest is the immutable input of one grading invocation. The student
// answer has already been normalized to text by the answer normalizer.
type GradingRequest struct {
	Question            string
	IdealAnswer         string
	StudentAnswer       string
	Style               GradingStyle
	AdaptiveInstruction string
}

// Satisfaction is the reviewer's verdict on a completed grading.
type Satisfaction string

const (
	SatisfactionUnset Satisfaction = ""
	SatisfactionYes   Satisfaction = "yes"
	SatisfactionNo    Satisfaction = "no"
)

// FeedbackState tracks a record through the feedback cycle.
type FeedbackState string

const (
	StatePendingFeedback FeedbackState = "pending_feedback"
	StateResolved        FeedbackState = "resolved"
)

// FeedbackRecord captures the outcome of one record's feedback cycle. It is
// written exactly once, when the record resolves.
type FeedbackRecord struct {
	Satisfaction         Satisfaction `json:"satisfaction"`
	DetailedFeedback     string       `json:"detailed_feedback"`
	GeneratedInstruction string       `json:"generated_instruction"`
}

// ImageNote summarizes what was extracted from one uploaded image.
type ImageNote struct {
	Filename string `json:"filename"`
	Excerpt  string `json:"excerpt"`
	Failed   bool   `json:"failed"`
}

// ExcerptLimit caps how much extracted text an ImageNote shows.
const ExcerptLimit = 800

// Excerpt truncates extracted text for display, appending an ellipsis marker
// when content was cut.
func Excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= ExcerptLimit {
		return text
	}
	return string(runes[:ExcerptLimit]) + "…"
}

// EvaluationRecord is one completed grading plus its (eventual) feedback.
// Records are owned by the session history store, appended in chronological
// order and never removed.
type EvaluationRecord struct {
	SubmitterName  string         `json:"submitter_name"`
	SubmitterEmail string         `json:"submitter_email"`
	Timestamp      time.Time      `json:"timestamp"`
	Request        GradingRequest `json:"-"`
	Question       string         `json:"question"`
	StudentAnswer  string         `json:"student_answer"`
	Score          RubricScore    `json:"score"`
	Report         string         `json:"report"`
	ImageLinks     []string       `json:"image_links,omitempty"`
	State          FeedbackState  `json:"state"`
	Feedback       FeedbackRecord `json:"feedback"`
}

// SessionContext is the per-session mutable state threaded through the
// controller: a single adaptive-instruction slot. A new instruction replaces
// the previous one wholesale; instructions are never merged.
type SessionContext struct {
	AdaptiveInstruction string
}
