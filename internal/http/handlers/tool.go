package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/services"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

// ToolHandler serves both page tools and document tools under
// /api/tools/:tool.
type ToolHandler struct {
	tools    services.ToolService
	progress services.ProgressService
}

func NewToolHandler(toolSvc services.ToolService, progress services.ProgressService) *ToolHandler {
	return &ToolHandler{tools: toolSvc, progress: progress}
}

type toolStartBody struct {
	tools.DocRequest
	UserID  string `json:"user_id"`
	Force   bool   `json:"force"`
	N       int    `json:"n"`
	MindMap bool   `json:"mind_map"`
}

// POST /api/tools/:tool/start
func (h *ToolHandler) Start(c *gin.Context) {
	tool := c.Param("tool")
	var body toolStartBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAPIError(c, badJSON(err))
		return
	}
	userID, err := callerOr(c, body.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	switch {
	case h.tools.IsPageTool(tool):
		p, err := h.tools.StartPageTool(dbc(c), userID, tool, services.PageToolStart{
			FileID:   body.FileID,
			Filename: body.Filename,
			Force:    body.Force,
			Options:  tools.Options{N: body.N, Difficulty: body.Difficulty, MindMap: body.MindMap},
		})
		if err != nil {
			response.RespondAPIError(c, err)
			return
		}
		response.RespondAccepted(c, gin.H{
			"message":     "Processing started",
			"progress_id": p.ID.String(),
			"file_id":     p.FileID.String(),
		})
	case h.tools.IsDocTool(tool):
		p, err := h.tools.StartDocTool(dbc(c), userID, tool, body.DocRequest)
		if err != nil {
			response.RespondAPIError(c, err)
			return
		}
		response.RespondAccepted(c, gin.H{"message": "Processing started", "progress_id": p.ID.String()})
	default:
		response.RespondAPIError(c, apierr.NotFound("unknown_tool", "unknown tool %q", tool))
	}
}

// GET /api/tools/:tool/progress/:id
func (h *ToolHandler) Progress(c *gin.Context) {
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
	if p.Tool != c.Param("tool") {
		response.RespondAPIError(c, apierr.NotFound("progress_not_found", "progress %s not found", id))
		return
	}
	response.RespondOK(c, services.ProgressView(p))
}

// GET /api/tools/:tool/results?file_id=
func (h *ToolHandler) Results(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("n"))
	mindMap, _ := strconv.ParseBool(c.DefaultQuery("mind_map", "false"))
	out, err := h.tools.PageResults(dbc(c), callerID(c), c.Param("tool"), c.Query("file_id"),
		tools.Options{N: n, Difficulty: c.Query("difficulty"), MindMap: mindMap})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/tools/:tool/result/:id
func (h *ToolHandler) Result(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	raw, err := h.tools.DocResult(dbc(c), callerID(c), c.Param("tool"), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// GET /api/tools/overview
func (h *ToolHandler) Overview(c *gin.Context) {
	rows, err := h.progress.Overview(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tools": rows})
}
