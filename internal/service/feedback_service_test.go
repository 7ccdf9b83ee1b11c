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

type fakeRefiner struct {
	instruction string
	err         error
	calls       int
	lastInput   ai.RefinementInput
}

func (f *fakeRefiner) Refine(ctx context.Context, input ai.RefinementInput) (string, error) {
	f.calls++
	f.lastInput = input
	return f.instruction, f.err
}

type fakeLogRepo struct {
	rows []repository.EvaluationLogRow
	err  error
}

func (f *fakeLogRepo) Append(ctx context.Context, row *repository.EvaluationLogRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeLogRepo) ListBySession(ctx context.Context, sessionID string) ([]repository.EvaluationLogRow, error) {
	return f.rows, f.err
}

func boolPtr(v bool) *bool { return &v }

func feedbackPayload(satisfied bool, detail string) dto.FeedbackSubmission {
	return dto.FeedbackSubmission{Satisfied: boolPtr(satisfied), Detail: detail}
}

func pendingSession(t *testing.T) *Session {
	t.Helper()
	session := &Session{ID: "s1"}
	session.Append(&models.EvaluationRecord{
		Question: "2+2?",
		Request: models.GradingRequest{
			Question:      "2+2?",
			IdealAnswer:   "4",
			StudentAnswer: "4",
			Style:         models.StyleBalanced,
		},
		Report: "## Marks:\n- Total: 10 / 10\n\n## Justification:\ncorrect\n",
		State:  models.StatePendingFeedback,
	})
	return session
}

func newFeedbackService(refiner ai.Refiner, logRepo repository.EvaluationLogRepository) FeedbackService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewFeedbackService(refiner, logRepo, validate, testLogger())
}

func TestFeedbackSatisfiedClearsSlotAndResolves(t *testing.T) {
	refiner := &fakeRefiner{}
	session := pendingSession(t)
	session.SetAdaptiveInstruction("learned earlier")
	svc := newFeedbackService(refiner, nil)

	response, err := svc.Submit(context.Background(), session, feedbackPayload(true, ""))
	require.NoError(t, err)
	require.Equal(t, "yes", response.Satisfaction)
	require.Empty(t, response.GeneratedInstruction)
	require.Empty(t, session.AdaptiveInstruction())
	require.Equal(t, models.StateResolved, session.Latest().State)
	require.Zero(t, refiner.calls)
}

func TestFeedbackDissatisfiedWithoutDetailIsRejected(t *testing.T) {
	refiner := &fakeRefiner{}
	session := pendingSession(t)
	session.SetAdaptiveInstruction("keep me")
	svc := newFeedbackService(refiner, nil)

	_, err := svc.Submit(context.Background(), session, feedbackPayload(false, "  "))
	require.ErrorIs(t, err, ErrFeedbackDetailRequired)
	require.Zero(t, refiner.calls)
	require.Equal(t, "keep me", session.AdaptiveInstruction())
	require.Equal(t, models.StatePendingFeedback, session.Latest().State)
	require.Empty(t, session.Latest().Feedback.GeneratedInstruction)
}

func TestFeedbackDissatisfiedReplacesInstruction(t *testing.T) {
	refiner := &fakeRefiner{instruction: "Do not penalize minor grammar slips."}
	session := pendingSession(t)
	session.SetAdaptiveInstruction("old instruction")
	svc := newFeedbackService(refiner, nil)

	response, err := svc.Submit(context.Background(), session, feedbackPayload(false, "too harsh on grammar"))
	require.NoError(t, err)
	require.Equal(t, 1, refiner.calls)
	require.Equal(t, "too harsh on grammar", refiner.lastInput.Detail)
	require.Equal(t, "2+2?", refiner.lastInput.Question)
	require.Equal(t, "Do not penalize minor grammar slips.", response.GeneratedInstruction)
	require.Equal(t, "Do not penalize minor grammar slips.", session.AdaptiveInstruction())

	record := session.Latest()
	require.Equal(t, models.StateResolved, record.State)
	require.Equal(t, models.SatisfactionNo, record.Feedback.Satisfaction)
	require.Equal(t, "Do not penalize minor grammar slips.", record.Feedback.GeneratedInstruction)
}

func TestFeedbackSentinelClearsSlot(t *testing.T) {
	for _, reply := range []string{ai.NoImprovementSentinel, "no_improvement_needed", "", "   "} {
		refiner := &fakeRefiner{instruction: reply}
		session := pendingSession(t)
		session.SetAdaptiveInstruction("stale")
		svc := newFeedbackService(refiner, nil)

		response, err := svc.Submit(context.Background(), session, feedbackPayload(false, "still wrong"))
		require.NoError(t, err)
		require.Empty(t, response.GeneratedInstruction)
		require.Empty(t, session.AdaptiveInstruction())
		require.Equal(t, models.StateResolved, session.Latest().State)
	}
}

func TestFeedbackRefinementFailureStillRecordsVerdict(t *testing.T) {
	refiner := &fakeRefiner{err: errors.New("refiner down")}
	session := pendingSession(t)
	session.SetAdaptiveInstruction("stale")
	svc := newFeedbackService(refiner, nil)

	response, err := svc.Submit(context.Background(), session, feedbackPayload(false, "scores too low"))
	require.NoError(t, err)
	require.Len(t, response.Warnings, 1)
	require.Contains(t, response.Warnings[0], "refiner down")
	require.Empty(t, session.AdaptiveInstruction())

	record := session.Latest()
	require.Equal(t, models.StateResolved, record.State)
	require.Equal(t, models.SatisfactionNo, record.Feedback.Satisfaction)
	require.Equal(t, "scores too low", record.Feedback.DetailedFeedback)
	require.Empty(t, record.Feedback.GeneratedInstruction)
}

func TestFeedbackWithoutPendingGrading(t *testing.T) {
	svc := newFeedbackService(&fakeRefiner{}, nil)

	_, err := svc.Submit(context.Background(), &Session{ID: "empty"}, feedbackPayload(true, ""))
	require.ErrorIs(t, err, ErrNoPendingGrading)
}

func TestFeedbackAlreadyResolved(t *testing.T) {
	session := pendingSession(t)
	svc := newFeedbackService(&fakeRefiner{}, nil)

	_, err := svc.Submit(context.Background(), session, feedbackPayload(true, ""))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), session, feedbackPayload(true, ""))
	require.ErrorIs(t, err, ErrFeedbackAlreadyResolved)
}

func TestFeedbackMirrorsResolvedCycleToDurableLog(t *testing.T) {
	logRepo := &fakeLogRepo{}
	refiner := &fakeRefiner{instruction: "Weigh completeness less."}
	session := pendingSession(t)
	svc := newFeedbackService(refiner, logRepo)

	_, err := svc.Submit(context.Background(), session, feedbackPayload(false, "completeness overweighted"))
	require.NoError(t, err)
	require.Len(t, logRepo.rows, 1)
	require.Equal(t, "no", logRepo.rows[0].Satisfaction)
	require.Equal(t, "Weigh completeness less.", logRepo.rows[0].GeneratedInstruction)
}

func TestFeedbackLogSinkFailureIsAWarning(t *testing.T) {
	logRepo := &fakeLogRepo{err: errors.New("sheet offline")}
	session := pendingSession(t)
	svc := newFeedbackService(&fakeRefiner{}, logRepo)

	response, err := svc.Submit(context.Background(), session, feedbackPayload(true, ""))
	require.NoError(t, err)
	require.Len(t, response.Warnings, 1)
	require.Contains(t, response.Warnings[0], "durable log unavailable")
	require.Equal(t, models.StateResolved, session.Latest().State)
}
