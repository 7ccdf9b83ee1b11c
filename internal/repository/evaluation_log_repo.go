package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// EvaluationLogRow is the fixed column schema of the durable grading log.
// Multi-line fields are flattened by the caller before they reach this sink.
type EvaluationLogRow struct {
	ID                   uint      `gorm:"primaryKey"`
	Submitter            string    `gorm:"size:255"`
	Email                string    `gorm:"size:255;index"`
	SessionID            string    `gorm:"size:64;index"`
	Timestamp            time.Time `gorm:"index"`
	Question             string    `gorm:"type:text"`
	StudentAnswer        string    `gorm:"type:text"`
	Evaluation           string    `gorm:"type:text"`
	Satisfaction         string    `gorm:"size:8"`
	DetailFeedback       string    `gorm:"type:text"`
	GeneratedInstruction string    `gorm:"type:text"`
	ImageLinks           string    `gorm:"type:text"`
	CreatedAt            time.Time
}

// TableName pins the table name for the durable log.
func (EvaluationLogRow) TableName() string {
	return "evaluation_log"
}

// EvaluationLogRepository is the append-only row sink for completed gradings.
// Appends may fail when the backing store is unavailable; callers treat that
// as a warning, never as a fatal error for the in-session workflow.
type EvaluationLogRepository interface {
	Append(ctx context.Context, row *EvaluationLogRow) error
	ListBySession(ctx context.Context, sessionID string) ([]EvaluationLogRow, error)
}

type evaluationLogRepository struct {
	db *gorm.DB
}

// NewEvaluationLogRepository builds the gorm-backed durable log.
func NewEvaluationLogRepository(db *gorm.DB) EvaluationLogRepository {
	return &evaluationLogRepository{db: db}
}

func (r *evaluationLogRepository) Append(ctx context.Context, row *EvaluationLogRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *evaluationLogRepository) ListBySession(ctx context.Context, sessionID string) ([]EvaluationLogRow, error) {
	var rows []EvaluationLogRow
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&rows).Error
	return rows, err
}
