package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-call-api/internal/models"
)

const callColumns = `id, lesson_id, batch_id, course_id, teacher_id, date, start_time, end_time, timezone, status, previous_date, previous_start_time, previous_end_time, cancellation_reason, type, join_link, call_duration, created_at, updated_at`

// CallRepository persists scheduled calls.
type CallRepository struct {
	db *sqlx.DB
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(db *sqlx.DB) *CallRepository {
	return &CallRepository{db: db}
}

// GetByID returns a call by id, or sql.ErrNoRows.
func (r *CallRepository) GetByID(ctx context.Context, id string) (*models.ScheduledCall, error) {
	query := `SELECT ` + callColumns + ` FROM scheduled_calls WHERE id = $1 LIMIT 1`
	var call models.ScheduledCall
	if err := r.db.GetContext(ctx, &call, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &call, nil
}

// Create inserts a new call.
func (r *CallRepository) Create(ctx context.Context, call *models.ScheduledCall) error {
	now := time.Now().UTC()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	if call.UpdatedAt.IsZero() {
		call.UpdatedAt = call.CreatedAt
	}
	const query = `INSERT INTO scheduled_calls (id, lesson_id, batch_id, course_id, teacher_id, date, start_time, end_time, timezone, status, previous_date, previous_start_time, previous_end_time, cancellation_reason, type, join_link, call_duration, created_at, updated_at)
VALUES (:id, :lesson_id, :batch_id, :course_id, :teacher_id, :date, :start_time, :end_time, :timezone, :status, :previous_date, :previous_start_time, :previous_end_time, :cancellation_reason, :type, :join_link, :call_duration, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, call); err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

// Save writes the schedule, status and snapshot fields of an existing call. Other columns are left
// untouched so concurrent writers cannot clobber them.
func (r *CallRepository) Save(ctx context.Context, call *models.ScheduledCall) error {
	if call.UpdatedAt.IsZero() {
		call.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE scheduled_calls SET date = :date, start_time = :start_time, end_time = :end_time, status = :status, previous_date = :previous_date, previous_start_time = :previous_start_time, previous_end_time = :previous_end_time, cancellation_reason = :cancellation_reason, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, call)
	if err != nil {
		return fmt.Errorf("save call: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActiveByDates returns non-terminal calls whose date is one of dates.
func (r *CallRepository) ListActiveByDates(ctx context.Context, dates []string) ([]models.ScheduledCall, error) {
	if len(dates) == 0 {
		return []models.ScheduledCall{}, nil
	}
	query := `SELECT ` + callColumns + ` FROM scheduled_calls WHERE date = ANY($1) AND status IN ($2, $3) ORDER BY date, start_time`
	var calls []models.ScheduledCall
	if err := r.db.SelectContext(ctx, &calls, query, pq.Array(dates), models.CallStatusScheduled, models.CallStatusRescheduled); err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	return calls, nil
}
