package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/middleware"
	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/internal/service"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) (*models.JWTClaims, error) {
	claims := middleware.Claims(c)
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func summaryView(report *service.DispatchReport) *dto.DispatchSummaryView {
	if report == nil {
		return nil
	}
	s := report.Summary()
	return &dto.DispatchSummaryView{
		Recipients: s.Recipients,
		Skipped:    s.Skipped,
		Delivered:  s.Delivered,
		Failed:     s.Failed,
	}
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
