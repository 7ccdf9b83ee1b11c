package service

import "errors"

// ErrInputIncomplete indicates a required submission field is missing.
var ErrInputIncomplete = errors.New("question, ideal answer, and a student answer (text or images) are required")

// ErrVisionUnavailable indicates images were submitted but no vision engine is configured.
// Grading text-only while silently dropping image evidence would corrupt rubric scoring,
// so this rejects the whole submission.
var ErrVisionUnavailable = errors.New("image answers require a configured vision engine")

// ErrImageTypeNotAllowed indicates an uploaded file is not a supported image.
var ErrImageTypeNotAllowed = errors.New("uploaded file is not a supported image type")

// ErrImageTooLarge indicates an uploaded image exceeds the configured size limit.
var ErrImageTooLarge = errors.New("uploaded image exceeds maximum allowed size")

// ErrNoPendingGrading indicates feedback was submitted before any grading completed.
var ErrNoPendingGrading = errors.New("no grading awaiting feedback in this session")

// ErrFeedbackAlreadyResolved indicates the latest grading's feedback cycle already closed.
var ErrFeedbackAlreadyResolved = errors.New("feedback for the latest grading is already resolved")

// ErrFeedbackDetailRequired indicates a dissatisfied vote arrived without an explanation.
// A bare "no" carries no actionable signal, so refinement is not triggered.
var ErrFeedbackDetailRequired = errors.New("detailed feedback is required when dissatisfied")
