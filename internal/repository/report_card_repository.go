package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// ReportCardRepository persists report cards.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository creates a new ReportCardRepository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

// Create inserts a report card.
func (r *ReportCardRepository) Create(ctx context.Context, rc *models.ReportCard) error {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_cards (id, student_id, teacher_id, rating, comments, date, created_at) VALUES (:id, :student_id, :teacher_id, :rating, :comments, :date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rc); err != nil {
		return fmt.Errorf("create report card: %w", err)
	}
	return nil
}
