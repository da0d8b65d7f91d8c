package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-call-api/internal/models"
)

func TestNotificationCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))

	n := &models.Notification{UserID: "u1", Kind: "ScheduledEmail", Message: "hello"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationListByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "kind", "message", "link", "read", "created_at"}).
		AddRow("n1", "u1", "CancelledEmail", "cancelled", "/calls/c1", false, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND read = FALSE ORDER BY created_at DESC LIMIT 10")).
		WithArgs("u1").
		WillReturnRows(rows)

	items, err := repo.ListByUser(context.Background(), models.NotificationFilter{UserID: "u1", UnreadOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/calls/c1", items[0].Link)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 ORDER BY created_at DESC LIMIT 50")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.ListByUser(context.Background(), models.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRead(context.Background(), "u1", "n1"))

	mock.ExpectExec("UPDATE notifications").
		WithArgs("n1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkRead(context.Background(), "intruder", "n1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
