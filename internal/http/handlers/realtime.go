package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events
// Streams the caller's channel until the client disconnects. Every open
// stream of a user receives the same events.
func (h *RealtimeHandler) Events(c *gin.Context) {
	userID := callerID(c)
	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, userID)
	h.log.Info("SSE stream open", "user_id", userID, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "user_id", userID, "client_id", client.ID)
}
