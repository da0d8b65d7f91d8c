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

type reportCardService interface {
	SubmitReportCard(ctx context.Context, req dto.SubmitReportCardRequest) (*service.ReportCardResult, error)
}

// ReportCardHandler accepts teacher report cards.
type ReportCardHandler struct {
	service reportCardService
}

// NewReportCardHandler builds a report card handler.
func NewReportCardHandler(service reportCardService) *ReportCardHandler {
	return &ReportCardHandler{service: service}
}

// Submit godoc
// @Summary Submit a report card and notify administrators
// @Tags ReportCards
// @Accept json
// @Produce json
// @Param payload body dto.SubmitReportCardRequest true "Report card"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /report-cards [post]
func (h *ReportCardHandler) Submit(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitReportCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid report card payload"))
		return
	}
	if claims.Role == models.RoleTeacher {
		if req.TeacherID == "" {
			req.TeacherID = claims.UserID
		}
		if req.TeacherID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "teachers may only submit their own report cards"))
			return
		}
	}

	result, err := h.service.SubmitReportCard(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result.ReportCard, map[string]interface{}{"notifications": summaryView(result.Notifications)})
}
