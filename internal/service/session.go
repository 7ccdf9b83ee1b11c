package service

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/steelycan/autograde/internal/models"
	"github.com/steelycan/autograde/internal/render"
)

// NewlineToken replaces embedded line breaks in the tabular history projection
// so multi-line fields survive external storage without breaking columns.
const NewlineToken = " [NL] "

// HistoryTableHeader is the fixed column schema of the tabular projection.
var HistoryTableHeader = []string{
	"submitter", "email", "timestamp", "question", "student_answer",
	"evaluation", "satisfaction", "detailed_feedback", "generated_instruction", "image_links",
}

// Session owns the state scoped to one grading session: the single
// adaptive-instruction slot and the append-only evaluation history. Each
// session id gets its own isolated instance; nothing is shared across sessions.
type Session struct {
	ID string

	mu      sync.Mutex
	context models.SessionContext
	records []*models.EvaluationRecord
}

// AdaptiveInstruction returns the currently live instruction, or "".
func (s *Session) AdaptiveInstruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context.AdaptiveInstruction
}

// SetAdaptiveInstruction replaces the slot wholesale. The previous instruction
// is discarded, not merged.
func (s *Session) SetAdaptiveInstruction(instruction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context.AdaptiveInstruction = strings.TrimSpace(instruction)
}

// ClearAdaptiveInstruction empties the slot.
func (s *Session) ClearAdaptiveInstruction() {
	s.SetAdaptiveInstruction("")
}

// Append adds a completed grading to the history. Insertion order is
// chronological order, most recent last.
func (s *Session) Append(record *models.EvaluationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Latest returns the most recent record, or nil when the history is empty.
func (s *Session) Latest() *models.EvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

// All returns a snapshot of the history in insertion order.
func (s *Session) All() []models.EvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.EvaluationRecord, 0, len(s.records))
	for _, record := range s.records {
		snapshot = append(snapshot, *record)
	}
	return snapshot
}

// Len reports how many gradings the session has recorded.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ToTable projects the history into rows under HistoryTableHeader. Multi-line
// fields are flattened with NewlineToken.
func (s *Session) ToTable() [][]string {
	records := s.All()
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, HistoryTableHeader)
	for _, record := range records {
		rows = append(rows, []string{
			record.SubmitterName,
			record.SubmitterEmail,
			record.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			FlattenMultiline(record.Question),
			FlattenMultiline(record.StudentAnswer),
			FlattenMultiline(record.Report),
			string(record.Feedback.Satisfaction),
			FlattenMultiline(record.Feedback.DetailedFeedback),
			FlattenMultiline(record.Feedback.GeneratedInstruction),
			strings.Join(record.ImageLinks, " "),
		})
	}
	return rows
}

// FlattenMultiline collapses embedded line breaks into NewlineToken.
func FlattenMultiline(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", NewlineToken)
}

// MarksAndJustification splits a record's rendered report for display.
func MarksAndJustification(record models.EvaluationRecord) (string, string) {
	marks, justification, ok := render.Split(record.Report)
	if !ok {
		return record.Report, ""
	}
	return marks, justification
}

// SessionManager hands out isolated sessions keyed by session id.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   zerolog.Logger
}

// NewSessionManager constructs an empty session registry.
func NewSessionManager(logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "session_manager").Logger(),
	}
}

// Get returns the session for id, creating it on first use.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		session = &Session{ID: id}
		m.sessions[id] = session
		m.logger.Debug().Str("session_id", id).Msg("session created")
	}
	return session
}
