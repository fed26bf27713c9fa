package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/services"
)

type BatchHandler struct {
	batches services.BatchService
}

func NewBatchHandler(batches services.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// POST /api/summarizer/start_batch
func (h *BatchHandler) StartBatch(c *gin.Context) {
	var req struct {
		Vault []string `json:"vault"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, badJSON(err))
		return
	}
	view, err := h.batches.Start(dbc(c), callerID(c), req.Vault)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, view)
}

// GET /api/summarizer/batch_progress/:id
func (h *BatchHandler) BatchProgress(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	view, err := h.batches.Progress(dbc(c), callerID(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}
