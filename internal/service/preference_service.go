package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

// Fallbacks applied whenever a stored preference resolves empty. This is the only place they live.
var (
	DefaultNotificationMethods = []string{string(models.MethodEmail)}
	DefaultNotificationTimings = []string{string(models.Timing10Min)}
)

// DefaultNotificationPreference is the policy for users who never set a preference.
func DefaultNotificationPreference(userID string) models.NotificationPreference {
	return models.NotificationPreference{
		UserID:  userID,
		Enabled: true,
		Methods: append([]string(nil), DefaultNotificationMethods...),
		Timings: append([]string(nil), DefaultNotificationTimings...),
	}
}

type preferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error)
	Upsert(ctx context.Context, pref *models.NotificationPreference) error
}

// PreferenceResolver yields the effective notification preference of a user.
type PreferenceResolver interface {
	Resolve(ctx context.Context, userID string) (models.NotificationPreference, error)
}

// PreferenceService resolves and stores notification preferences, optionally through Redis.
type PreferenceService struct {
	repo      preferenceStore
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPreferenceService builds the service. cache may be nil.
func NewPreferenceService(repo preferenceStore, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

func preferenceCacheKey(userID string) string {
	return "notification_pref:" + userID
}

// Resolve returns the effective preference. Store failures are returned so the caller can skip the
// recipient rather than guess at an opt-out it cannot read.
func (s *PreferenceService) Resolve(ctx context.Context, userID string) (models.NotificationPreference, error) {
	var cached models.NotificationPreference
	if s.cache.Get(ctx, preferenceCacheKey(userID), &cached) {
		return normalizePreference(userID, cached), nil
	}

	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			pref := DefaultNotificationPreference(userID)
			s.cache.Set(ctx, preferenceCacheKey(userID), pref, s.cacheTTL)
			return pref, nil
		}
		return models.NotificationPreference{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification preference")
	}

	pref := normalizePreference(userID, *stored)
	s.cache.Set(ctx, preferenceCacheKey(userID), pref, s.cacheTTL)
	return pref, nil
}

// Update replaces the stored preference for userID.
func (s *PreferenceService) Update(ctx context.Context, userID string, req dto.UpdateNotificationPreferenceRequest) (*models.NotificationPreference, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification preference payload")
	}
	pref := &models.NotificationPreference{
		UserID:  userID,
		Enabled: *req.Enabled,
		Methods: append([]string{}, req.Methods...),
		Timings: append([]string{}, req.Timings...),
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification preference")
	}
	s.cache.Invalidate(ctx, preferenceCacheKey(userID))

	effective := normalizePreference(userID, *pref)
	effective.UpdatedAt = pref.UpdatedAt
	return &effective, nil
}

func normalizePreference(userID string, pref models.NotificationPreference) models.NotificationPreference {
	pref.UserID = userID
	if len(pref.Methods) == 0 {
		pref.Methods = append([]string(nil), DefaultNotificationMethods...)
	}
	if len(pref.Timings) == 0 {
		pref.Timings = append([]string(nil), DefaultNotificationTimings...)
	}
	return pref
}
