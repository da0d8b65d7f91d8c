package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// UserRepository resolves users and notification audiences.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindRecipient returns an active user as a notification recipient.
func (r *UserRepository) FindRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	const query = `SELECT id, email, full_name, role FROM users WHERE id = $1 AND active = TRUE LIMIT 1`
	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find recipient: %w", err)
	}
	return &recipient, nil
}

// ListByRoles returns every active user holding one of roles.
func (r *UserRepository) ListByRoles(ctx context.Context, roles ...models.UserRole) ([]models.Recipient, error) {
	if len(roles) == 0 {
		return []models.Recipient{}, nil
	}
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	const query = `SELECT id, email, full_name, role FROM users WHERE active = TRUE AND role = ANY($1) ORDER BY full_name`
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return recipients, nil
}

// CallAudience returns the active students enrolled in the call's batch plus the assigned teacher.
func (r *UserRepository) CallAudience(ctx context.Context, call *models.ScheduledCall) ([]models.Recipient, error) {
	if call == nil {
		return []models.Recipient{}, nil
	}
	const query = `SELECT u.id, u.email, u.full_name, u.role FROM users u
WHERE u.active = TRUE AND (u.id = $2 OR u.id IN (SELECT bs.student_id FROM batch_students bs WHERE bs.batch_id = $1))
ORDER BY u.role, u.full_name`
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, call.BatchID, call.TeacherID); err != nil {
		return nil, fmt.Errorf("resolve call audience: %w", err)
	}
	return recipients, nil
}
