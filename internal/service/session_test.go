package service

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/steelycan/autograde/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestSessionAppendKeepsInsertionOrder(t *testing.T) {
	session := &Session{ID: "s1"}

	session.Append(&models.EvaluationRecord{Question: "first"})
	session.Append(&models.EvaluationRecord{Question: "second"})

	records := session.All()
	require.Len(t, records, 2)
	require.Equal(t, "first", records[0].Question)
	require.Equal(t, "second", records[1].Question)
	require.Equal(t, "second", session.Latest().Question)
	require.Equal(t, 2, session.Len())
}

func TestSessionAllReturnsSnapshot(t *testing.T) {
	session := &Session{ID: "s1"}
	session.Append(&models.EvaluationRecord{Question: "q"})

	snapshot := session.All()
	snapshot[0].Question = "mutated"

	require.Equal(t, "q", session.Latest().Question)
}

func TestAdaptiveInstructionSlotReplacesWholesale(t *testing.T) {
	session := &Session{ID: "s1"}
	require.Empty(t, session.AdaptiveInstruction())

	session.SetAdaptiveInstruction("be kinder about grammar")
	session.SetAdaptiveInstruction("focus on concepts")
	require.Equal(t, "focus on concepts", session.AdaptiveInstruction())

	session.ClearAdaptiveInstruction()
	require.Empty(t, session.AdaptiveInstruction())
}

func TestToTableFlattensMultilineFields(t *testing.T) {
	session := &Session{ID: "s1"}
	session.Append(&models.EvaluationRecord{
		SubmitterName:  "Ada",
		SubmitterEmail: "ada@example.com",
		Timestamp:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Question:       "Explain\nTCP",
		StudentAnswer:  "line one\r\nline two",
		Report:         "## Marks:\n- Total: 8 / 10",
		Feedback: models.FeedbackRecord{
			Satisfaction:     models.SatisfactionNo,
			DetailedFeedback: "too harsh\non grammar",
		},
		ImageLinks: []string{"https://cdn/one.png", "https://cdn/two.png"},
	})

	table := session.ToTable()
	require.Len(t, table, 2)
	require.Equal(t, HistoryTableHeader, table[0])

	row := table[1]
	require.Equal(t, "Explain [NL] TCP", row[3])
	require.Equal(t, "line one [NL] line two", row[4])
	require.Equal(t, "no", row[6])
	require.Equal(t, "too harsh [NL] on grammar", row[7])
	require.Equal(t, "https://cdn/one.png https://cdn/two.png", row[9])
	for _, cell := range row {
		require.NotContains(t, cell, "\n")
	}
}

func TestSessionManagerIsolatesSessions(t *testing.T) {
	manager := NewSessionManager(testLogger())

	a := manager.Get("a")
	b := manager.Get("b")
	a.SetAdaptiveInstruction("instruction for a")

	require.Empty(t, b.AdaptiveInstruction())
	require.Same(t, a, manager.Get("a"))
}
