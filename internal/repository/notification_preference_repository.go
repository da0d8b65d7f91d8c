package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// NotificationPreferenceRepository reads and writes per-user notification preferences.
type NotificationPreferenceRepository struct {
	db *sqlx.DB
}

// NewNotificationPreferenceRepository creates a new repository.
func NewNotificationPreferenceRepository(db *sqlx.DB) *NotificationPreferenceRepository {
	return &NotificationPreferenceRepository{db: db}
}

// GetPreferences returns the stored preference, or sql.ErrNoRows when the user never saved one.
func (r *NotificationPreferenceRepository) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	const query = `SELECT user_id, enabled, methods, timings, updated_at FROM notification_preferences WHERE user_id = $1 LIMIT 1`
	var pref models.NotificationPreference
	if err := r.db.GetContext(ctx, &pref, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return &pref, nil
}

// Upsert replaces the user's preference.
func (r *NotificationPreferenceRepository) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	pref.UpdatedAt = time.Now().UTC()
	if pref.Methods == nil {
		pref.Methods = []string{}
	}
	if pref.Timings == nil {
		pref.Timings = []string{}
	}
	const query = `INSERT INTO notification_preferences (user_id, enabled, methods, timings, updated_at)
VALUES (:user_id, :enabled, :methods, :timings, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET enabled = EXCLUDED.enabled, methods = EXCLUDED.methods, timings = EXCLUDED.timings, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert notification preference: %w", err)
	}
	return nil
}
