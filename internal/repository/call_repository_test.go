package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-call-api/internal/models"
)

var callColumnNames = []string{"id", "lesson_id", "batch_id", "course_id", "teacher_id", "date", "start_time", "end_time", "timezone", "status", "previous_date", "previous_start_time", "previous_end_time", "cancellation_reason", "type", "join_link", "call_duration", "created_at", "updated_at"}

func TestCallGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCallRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(callColumnNames).
		AddRow("c1", "l1", "b1", "", "t1", "2024-06-10", "09:00", "10:00", "Asia/Kolkata", "Rescheduled", "2024-06-09", "08:00", "09:00", nil, "live", "https://meet.example.com/x", 60, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduled_calls WHERE id = $1 LIMIT 1")).
		WithArgs("c1").
		WillReturnRows(rows)

	call, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusRescheduled, call.Status)
	require.NotNil(t, call.PreviousDate)
	assert.Equal(t, "2024-06-09", *call.PreviousDate)
	assert.Nil(t, call.CancellationReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCallRepository(db)

	mock.ExpectQuery("FROM scheduled_calls").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCallCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCallRepository(db)

	mock.ExpectExec("INSERT INTO scheduled_calls").WillReturnResult(sqlmock.NewResult(1, 1))

	call := &models.ScheduledCall{ID: "c1", BatchID: "b1", Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Timezone: "UTC", Status: models.CallStatusScheduled}
	require.NoError(t, repo.Create(context.Background(), call))
	assert.False(t, call.CreatedAt.IsZero())
	assert.Equal(t, call.CreatedAt, call.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallSave(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCallRepository(db)

	reason := "holiday"
	call := &models.ScheduledCall{ID: "c1", Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Status: models.CallStatusCancelled, CancellationReason: &reason, UpdatedAt: time.Now()}

	mock.ExpectExec("UPDATE scheduled_calls SET date = .+ WHERE id = ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), call))

	mock.ExpectExec("UPDATE scheduled_calls").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Save(context.Background(), call), sql.ErrNoRows)

	mock.ExpectExec("UPDATE scheduled_calls").WillReturnError(errors.New("conn reset"))
	err := repo.Save(context.Background(), call)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save call")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveByDates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCallRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(callColumnNames).
		AddRow("c1", "l1", "b1", "", "t1", "2024-06-10", "09:00", "10:00", "UTC", "Scheduled", nil, nil, nil, nil, "", "", 0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE date = ANY($1) AND status IN ($2, $3)")).
		WithArgs(sqlmock.AnyArg(), models.CallStatusScheduled, models.CallStatusRescheduled).
		WillReturnRows(rows)

	calls, err := repo.ListActiveByDates(context.Background(), []string{"2024-06-10", "2024-06-11"})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)

	empty, err := repo.ListActiveByDates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
