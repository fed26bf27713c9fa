package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/services"
)

type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// GET /api/progress/all
func (h *ProgressHandler) All(c *gin.Context) {
	rows, err := h.progress.ListActive(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": rows})
}

// GET /api/progress/:id
func (h *ProgressHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	p, err := h.progress.Get(dbc(c), callerID(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, services.ProgressView(p))
}
