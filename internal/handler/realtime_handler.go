package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/pkg/response"
)

type connectionServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandler upgrades authenticated clients to the push socket.
type RealtimeHandler struct {
	hub    connectionServer
	logger *zap.Logger
}

// NewRealtimeHandler builds a realtime handler.
func NewRealtimeHandler(hub connectionServer, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, logger: logger}
}

// Connect godoc
// @Summary Open the caller's live notification socket
// @Tags Realtime
// @Param access_token query string false "Access token when the Authorization header cannot be set"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	// A failed upgrade has already written its own HTTP error.
	if err := h.hub.Serve(c.Writer, c.Request, claims.UserID); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}
