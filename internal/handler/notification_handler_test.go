package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

type notificationServiceStub struct {
	items   []models.Notification
	err     error
	user    string
	query   dto.NotificationQuery
	readIDs []string
}

func (s *notificationServiceStub) List(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, error) {
	s.user = userID
	s.query = query
	return s.items, s.err
}

func (s *notificationServiceStub) MarkRead(ctx context.Context, userID, id string) error {
	s.user = userID
	if s.err != nil {
		return s.err
	}
	s.readIDs = append(s.readIDs, id)
	return nil
}

type preferenceServiceStub struct {
	pref    models.NotificationPreference
	err     error
	updated *dto.UpdateNotificationPreferenceRequest
}

func (s *preferenceServiceStub) Resolve(ctx context.Context, userID string) (models.NotificationPreference, error) {
	p := s.pref
	p.UserID = userID
	return p, s.err
}

func (s *preferenceServiceStub) Update(ctx context.Context, userID string, req dto.UpdateNotificationPreferenceRequest) (*models.NotificationPreference, error) {
	s.updated = &req
	if s.err != nil {
		return nil, s.err
	}
	return &models.NotificationPreference{UserID: userID, Enabled: *req.Enabled, Methods: req.Methods, Timings: req.Timings}, nil
}

func TestNotificationHandlerList(t *testing.T) {
	stub := &notificationServiceStub{items: []models.Notification{{ID: "n1", Message: "New class"}}}
	h := NewNotificationHandler(stub, &preferenceServiceStub{})

	c, w := newContext(http.MethodGet, "/notifications?unread=true&limit=5", "", studentClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", stub.user)
	assert.Equal(t, dto.NotificationQuery{UnreadOnly: true, Limit: 5}, stub.query)

	var items []models.Notification
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	stub := &notificationServiceStub{}
	h := NewNotificationHandler(stub, &preferenceServiceStub{})

	c, w := newContext(http.MethodPatch, "/notifications/n1/read", "", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	h.MarkRead(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"n1"}, stub.readIDs)

	stub.err = appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	c, w = newContext(http.MethodPatch, "/notifications/n2/read", "", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "n2"}}
	h.MarkRead(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerPreferences(t *testing.T) {
	prefs := &preferenceServiceStub{pref: models.NotificationPreference{Enabled: true, Methods: []string{"email"}, Timings: []string{"10min"}}}
	h := NewNotificationHandler(&notificationServiceStub{}, prefs)

	c, w := newContext(http.MethodGet, "/notification-preferences", "", teacherClaims)
	h.GetPreferences(c)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.NotificationPreference
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "teacher-1", got.UserID)

	c, w = newContext(http.MethodPut, "/notification-preferences", `{"enabled":false,"methods":["push"],"timings":["1hour"]}`, teacherClaims)
	h.UpdatePreferences(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, prefs.updated)
	assert.False(t, *prefs.updated.Enabled)
	assert.Equal(t, []string{"push"}, prefs.updated.Methods)
}

func TestNotificationHandlerRejectsMalformedPreferences(t *testing.T) {
	prefs := &preferenceServiceStub{}
	h := NewNotificationHandler(&notificationServiceStub{}, prefs)

	c, w := newContext(http.MethodPut, "/notification-preferences", `{"enabled":`, teacherClaims)
	h.UpdatePreferences(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, prefs.updated)
}
