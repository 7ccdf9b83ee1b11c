package dto

// FeedbackSubmission is the reviewer's verdict on the latest grading.
// Detail is mandatory when Satisfied is false.
type FeedbackSubmission struct {
	Satisfied *bool  `json:"satisfied" validate:"required"`
	Detail    string `json:"detail"`
}

// FeedbackResponse is returned after a feedback cycle resolves.
type FeedbackResponse struct {
	Satisfaction         string   `json:"satisfaction"`
	DetailedFeedback     string   `json:"detailed_feedback"`
	GeneratedInstruction string   `json:"generated_instruction"`
	AdaptiveInstruction  string   `json:"adaptive_instruction"`
	Warnings             []string `json:"warnings,omitempty"`
}

// HistoryResponse lists a session's evaluation records, most recent last.
type HistoryResponse struct {
	SessionID string                     `json:"session_id"`
	Records   []EvaluationRecordResponse `json:"records"`
}

// IdentityResponse echoes the submitter identity bound to the request.
type IdentityResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
