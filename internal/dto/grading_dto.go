package dto

import (
	"time"

	"github.com/steelycan/autograde/internal/models"
)

// GradingSubmission describes the multipart form fields of a grading request.
// The student answer may be empty when answer images are attached.
type GradingSubmission struct {
	Question      string `form:"question" validate:"required"`
	IdealAnswer   string `form:"ideal_answer" validate:"required"`
	StudentAnswer string `form:"student_answer"`
	GradingStyle  string `form:"grading_style" validate:"omitempty,oneof=strict balanced lenient"`
}

// ScoreBreakdown serializes a rubric score with its recomputed total.
type ScoreBreakdown struct {
	ContentAccuracy    float64 `json:"content_accuracy"`
	Completeness       float64 `json:"completeness"`
	LanguageClarity    float64 `json:"language_clarity"`
	DepthUnderstanding float64 `json:"depth_understanding"`
	StructureCoherence float64 `json:"structure_coherence"`
	Total              float64 `json:"total"`
	Justification      string  `json:"justification"`
}

// NewScoreBreakdown builds the API projection of a rubric score.
func NewScoreBreakdown(score models.RubricScore) ScoreBreakdown {
	return ScoreBreakdown{
		ContentAccuracy:    score.ContentAccuracy,
		Completeness:       score.Completeness,
		LanguageClarity:    score.LanguageClarity,
		DepthUnderstanding: score.DepthUnderstanding,
		StructureCoherence: score.StructureCoherence,
		Total:              score.Total(),
		Justification:      score.Justification,
	}
}

// EvaluationRecordResponse is one history entry as returned to API clients.
type EvaluationRecordResponse struct {
	SubmitterName  string                `json:"submitter_name"`
	SubmitterEmail string                `json:"submitter_email"`
	Timestamp      time.Time             `json:"timestamp"`
	Question       string                `json:"question"`
	StudentAnswer  string                `json:"student_answer"`
	GradingStyle   string                `json:"grading_style"`
	Score          ScoreBreakdown        `json:"score"`
	Report         string                `json:"report"`
	State          string                `json:"state"`
	Feedback       FeedbackRecordPayload `json:"feedback"`
	ImageLinks     []string              `json:"image_links,omitempty"`
}

// FeedbackRecordPayload mirrors the feedback sub-record of a history entry.
type FeedbackRecordPayload struct {
	Satisfaction         string `json:"satisfaction"`
	DetailedFeedback     string `json:"detailed_feedback"`
	GeneratedInstruction string `json:"generated_instruction"`
}

// NewEvaluationRecordResponse converts a history record for API output.
func NewEvaluationRecordResponse(record models.EvaluationRecord) EvaluationRecordResponse {
	return EvaluationRecordResponse{
		SubmitterName:  record.SubmitterName,
		SubmitterEmail: record.SubmitterEmail,
		Timestamp:      record.Timestamp,
		Question:       record.Question,
		StudentAnswer:  record.StudentAnswer,
		GradingStyle:   string(record.Request.Style),
		Score:          NewScoreBreakdown(record.Score),
		Report:         record.Report,
		State:          string(record.State),
		Feedback: FeedbackRecordPayload{
			Satisfaction:         string(record.Feedback.Satisfaction),
			DetailedFeedback:     record.Feedback.DetailedFeedback,
			GeneratedInstruction: record.Feedback.GeneratedInstruction,
		},
		ImageLinks: record.ImageLinks,
	}
}

// GradingResponse is returned after a grading completes.
type GradingResponse struct {
	Record        EvaluationRecordResponse `json:"record"`
	Marks         string                   `json:"marks"`
	Justification string                   `json:"justification"`
	ImageNotes    []models.ImageNote       `json:"image_notes,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
}
