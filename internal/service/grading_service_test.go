package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/steelycan/autograde/internal/dto"
	"github.com/steelycan/autograde/internal/models"
	"github.com/steelycan/autograde/internal/repository"
	"github.com/steelycan/autograde/pkg/ai"
)

type fakeGrader struct {
	result    ai.GradingResult
	err       error
	calls     int
	lastInput ai.GradingInput
}

func (f *fakeGrader) Grade(ctx context.Context, input ai.GradingInput) (ai.GradingResult, error) {
	f.calls++
	f.lastInput = input
	return f.result, f.err
}

// pngBytes is a minimal PNG signature so mimetype sniffing sees an image.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func perfectResult() ai.GradingResult {
	return ai.GradingResult{
		ContentAccuracy:    3,
		Completeness:       2,
		LanguageClarity:    2,
		DepthUnderstanding: 2,
		StructureCoherence: 1,
		Justification:      "correct",
	}
}

func newGradingService(grader ai.Grader, vision ai.VisionExtractor, logRepo repository.EvaluationLogRepository) GradingService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	normalizer := NewNormalizer(vision, testLogger())
	return NewGradingService(grader, normalizer, nil, logRepo, validate, 8, testLogger())
}

func balancedSubmission() dto.GradingSubmission {
	return dto.GradingSubmission{
		Question:      "2+2?",
		IdealAnswer:   "4",
		StudentAnswer: "4",
		GradingStyle:  "balanced",
	}
}

func TestGradeEndToEndPerfectScore(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	logRepo := &fakeLogRepo{}
	session := &Session{ID: "s1"}
	svc := newGradingService(grader, nil, logRepo)

	response, err := svc.Grade(context.Background(), session, Submitter{Name: "Ada", Email: "ada@example.com"}, balancedSubmission(), nil)
	require.NoError(t, err)
	require.Equal(t, 10.0, response.Record.Score.Total)
	require.Contains(t, response.Record.Report, "- **Total: 10 / 10**")
	require.Contains(t, response.Marks, "Content Accuracy: 3 / 3")
	require.Equal(t, "correct", response.Justification)

	record := session.Latest()
	require.NotNil(t, record)
	require.Equal(t, models.StatePendingFeedback, record.State)
	require.Equal(t, models.SatisfactionUnset, record.Feedback.Satisfaction)
	require.Empty(t, record.Feedback.DetailedFeedback)
	require.Empty(t, record.Feedback.GeneratedInstruction)
	require.Equal(t, "ada@example.com", record.SubmitterEmail)

	require.Len(t, logRepo.rows, 1)
	require.Equal(t, "", logRepo.rows[0].Satisfaction)
	require.NotContains(t, logRepo.rows[0].Evaluation, "\n")
}

func TestGradeFailureLeavesNoTrace(t *testing.T) {
	grader := &fakeGrader{err: &ai.GradingError{Reason: "transport error", Err: errors.New("dial timeout")}}
	logRepo := &fakeLogRepo{}
	session := &Session{ID: "s1"}
	session.SetAdaptiveInstruction("must survive")
	svc := newGradingService(grader, nil, logRepo)

	_, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), nil)
	require.Error(t, err)
	var gradingErr *ai.GradingError
	require.ErrorAs(t, err, &gradingErr)
	require.Zero(t, session.Len())
	require.Empty(t, logRepo.rows)
	require.Equal(t, "must survive", session.AdaptiveInstruction())
}

func TestGradeCarriesAdaptiveInstruction(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	session := &Session{ID: "s1"}
	session.SetAdaptiveInstruction("Do not penalize minor grammar slips.")
	svc := newGradingService(grader, nil, nil)

	_, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), nil)
	require.NoError(t, err)
	require.Equal(t, "Do not penalize minor grammar slips.", grader.lastInput.AdaptiveInstruction)
}

func TestGradeClampsEngineScores(t *testing.T) {
	grader := &fakeGrader{result: ai.GradingResult{ContentAccuracy: 50, Completeness: -2, Justification: "odd"}}
	session := &Session{ID: "s1"}
	svc := newGradingService(grader, nil, nil)

	response, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), nil)
	require.NoError(t, err)
	require.Equal(t, 3.0, response.Record.Score.ContentAccuracy)
	require.Equal(t, 0.0, response.Record.Score.Completeness)
	require.Equal(t, 3.0, response.Record.Score.Total)
}

func TestGradeRejectsNonImageUpload(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	vision := &fakeVision{}
	session := &Session{ID: "s1"}
	svc := newGradingService(grader, vision, nil)

	_, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), []AnswerImage{
		{Filename: "notes.txt", Data: []byte("plain text, not an image")},
	})
	require.ErrorIs(t, err, ErrImageTypeNotAllowed)
	require.Zero(t, grader.calls)
	require.Zero(t, session.Len())
}

func TestGradeRejectsImagesWithoutVision(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	session := &Session{ID: "s1"}
	svc := newGradingService(grader, nil, nil)

	_, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), []AnswerImage{
		{Filename: "scan.png", Data: pngBytes},
	})
	require.ErrorIs(t, err, ErrVisionUnavailable)
	require.Zero(t, grader.calls)
}

func TestGradeValidatesRequiredFields(t *testing.T) {
	svc := newGradingService(&fakeGrader{}, nil, nil)

	_, err := svc.Grade(context.Background(), &Session{ID: "s1"}, Submitter{}, dto.GradingSubmission{
		IdealAnswer:   "4",
		StudentAnswer: "4",
	}, nil)
	require.Error(t, err)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestGradeLogSinkFailureIsAWarning(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	logRepo := &fakeLogRepo{err: errors.New("sheet offline")}
	session := &Session{ID: "s1"}
	svc := newGradingService(grader, nil, logRepo)

	response, err := svc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), nil)
	require.NoError(t, err)
	require.Len(t, response.Warnings, 1)
	require.Contains(t, response.Warnings[0], "durable log unavailable")
	require.Equal(t, 1, session.Len())
}

// The full adaptive loop: a dissatisfied reviewer teaches the session an
// instruction, and every later grading in that session carries it.
func TestAdaptiveLoopAcrossGradings(t *testing.T) {
	grader := &fakeGrader{result: perfectResult()}
	refiner := &fakeRefiner{instruction: "Do not penalize minor grammar slips."}
	session := &Session{ID: "s1"}

	gradingSvc := newGradingService(grader, nil, nil)
	feedbackSvc := newFeedbackService(refiner, nil)

	_, err := gradingSvc.Grade(context.Background(), session, Submitter{}, balancedSubmission(), nil)
	require.NoError(t, err)
	require.Empty(t, grader.lastInput.AdaptiveInstruction)

	_, err = feedbackSvc.Submit(context.Background(), session, feedbackPayload(false, "too harsh on grammar"))
	require.NoError(t, err)

	second := balancedSubmission()
	second.Question = "3+3?"
	second.IdealAnswer = "6"
	_, err = gradingSvc.Grade(context.Background(), session, Submitter{}, second, nil)
	require.NoError(t, err)
	require.Equal(t, "Do not penalize minor grammar slips.", grader.lastInput.AdaptiveInstruction)

	third := balancedSubmission()
	third.Question = "capital of France?"
	third.IdealAnswer = "Paris"
	third.StudentAnswer = "Paris"
	_, err = gradingSvc.Grade(context.Background(), session, Submitter{}, third, nil)
	require.NoError(t, err)
	require.Equal(t, "Do not penalize minor grammar slips.", grader.lastInput.AdaptiveInstruction)
}
