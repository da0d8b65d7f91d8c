package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/internal/service"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
	"github.com/noah-isme/lms-call-api/pkg/response"
)

type callService interface {
	ScheduleCall(ctx context.Context, req dto.ScheduleCallRequest) (*service.CallResult, error)
	RescheduleCall(ctx context.Context, callID string, req dto.RescheduleCallRequest) (*service.CallResult, error)
	CancelCall(ctx context.Context, callID string, reason string) (*service.CallResult, error)
	CompleteCall(ctx context.Context, callID string) (*service.CallResult, error)
	GetCall(ctx context.Context, callID string) (*models.ScheduledCall, error)
	CallWindow(ctx context.Context, callID string) (*models.CallWindow, error)
}

// CallHandler exposes scheduled call endpoints.
type CallHandler struct {
	service callService
}

// NewCallHandler builds a call handler.
func NewCallHandler(service callService) *CallHandler {
	return &CallHandler{service: service}
}

// Schedule godoc
// @Summary Schedule a class session
// @Tags Calls
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleCallRequest true "Call payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calls [post]
func (h *CallHandler) Schedule(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ScheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid call payload"))
		return
	}
	if claims.Role == models.RoleTeacher {
		if req.TeacherID == "" {
			req.TeacherID = claims.UserID
		}
		if req.TeacherID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "teachers may only schedule their own calls"))
			return
		}
	}

	result, err := h.service.ScheduleCall(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CallOperationResponse{Call: result.Call, Notifications: summaryView(result.Notifications)})
}

// Get godoc
// @Summary Get a scheduled call
// @Tags Calls
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calls/{id} [get]
func (h *CallHandler) Get(c *gin.Context) {
	call, err := h.service.GetCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, call)
}

// Window godoc
// @Summary Report whether a call can be joined or is in progress right now
// @Tags Calls
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Router /calls/{id}/window [get]
func (h *CallHandler) Window(c *gin.Context) {
	window, err := h.service.CallWindow(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, window)
}

// Reschedule godoc
// @Summary Move a call to a new date and time
// @Tags Calls
// @Accept json
// @Produce json
// @Param id path string true "Call ID"
// @Param payload body dto.RescheduleCallRequest true "New schedule"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calls/{id}/reschedule [patch]
func (h *CallHandler) Reschedule(c *gin.Context) {
	if !h.authorizeMutation(c) {
		return
	}
	var req dto.RescheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reschedule payload"))
		return
	}
	result, err := h.service.RescheduleCall(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CallOperationResponse{Call: result.Call, Notifications: summaryView(result.Notifications)})
}

// Cancel godoc
// @Summary Cancel a call
// @Tags Calls
// @Accept json
// @Produce json
// @Param id path string true "Call ID"
// @Param payload body dto.CancelCallRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calls/{id}/cancel [post]
func (h *CallHandler) Cancel(c *gin.Context) {
	if !h.authorizeMutation(c) {
		return
	}
	var req dto.CancelCallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid cancel payload"))
			return
		}
	}
	result, err := h.service.CancelCall(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CallOperationResponse{Call: result.Call, Notifications: summaryView(result.Notifications)})
}

// Complete godoc
// @Summary Mark a call as completed
// @Tags Calls
// @Produce json
// @Param id path string true "Call ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calls/{id}/complete [post]
func (h *CallHandler) Complete(c *gin.Context) {
	if !h.authorizeMutation(c) {
		return
	}
	result, err := h.service.CompleteCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CallOperationResponse{Call: result.Call})
}

// authorizeMutation writes an error and returns false unless the caller may change the call.
// Teachers may only change their own calls.
func (h *CallHandler) authorizeMutation(c *gin.Context) bool {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if claims.Role != models.RoleTeacher {
		return true
	}
	call, err := h.service.GetCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return false
	}
	if call.TeacherID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "teachers may only change their own calls"))
		return false
	}
	return true
}
