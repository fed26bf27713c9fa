package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/services"
)

type ScraperHandler struct {
	scraper services.ScraperService
}

func NewScraperHandler(scraper services.ScraperService) *ScraperHandler {
	return &ScraperHandler{scraper: scraper}
}

// GET /api/scraper/search?q=
func (h *ScraperHandler) Search(c *gin.Context) {
	results, err := h.scraper.Search(c.Query("q"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"query": c.Query("q"), "results": results})
}

// POST /api/scraper/queue
func (h *ScraperHandler) Queue(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, badJSON(err))
		return
	}
	out, err := h.scraper.Queue(dbc(c), callerID(c), req.URLs)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, out)
}

// GET /api/scraper/jobs
func (h *ScraperHandler) Jobs(c *gin.Context) {
	jobs, err := h.scraper.Jobs(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/scraper/jobs/:id
func (h *ScraperHandler) Job(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	job, err := h.scraper.Job(dbc(c), callerID(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/scraper/results
func (h *ScraperHandler) Items(c *gin.Context) {
	items, err := h.scraper.Items(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"results": items})
}

// GET /api/scraper/results/:id
func (h *ScraperHandler) Item(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	item, err := h.scraper.Item(dbc(c), callerID(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": item})
}
