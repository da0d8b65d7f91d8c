package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type preferenceService interface {
	Resolve(ctx context.Context, userID string) (models.NotificationPreference, error)
	Update(ctx context.Context, userID string, req dto.UpdateNotificationPreferenceRequest) (*models.NotificationPreference, error)
}

// NotificationHandler serves the caller's in-app notifications and delivery preferences.
type NotificationHandler struct {
	notifications notificationService
	preferences   preferenceService
}

// NewNotificationHandler builds a notification handler.
func NewNotificationHandler(notifications notificationService, preferences preferenceService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, preferences: preferences}
}

// List godoc
// @Summary List the caller's notifications, newest first
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param limit query int false "Maximum items (default 50)"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid notification query"))
		return
	}
	items, err := h.notifications.List(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetPreferences godoc
// @Summary Get the caller's notification preference, with defaults applied
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notification-preferences [get]
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pref, err := h.preferences.Resolve(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pref)
}

// UpdatePreferences godoc
// @Summary Replace the caller's notification preference
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body dto.UpdateNotificationPreferenceRequest true "Preference"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notification-preferences [put]
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateNotificationPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid preference payload"))
		return
	}
	pref, err := h.preferences.Update(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pref)
}
