package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/http/response"
	"github.com/yungbote/scoolish-backend/internal/services"
)

type OnboardingHandler struct {
	onboarding services.OnboardingService
}

func NewOnboardingHandler(onboarding services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

// GET /api/onboarding
func (h *OnboardingHandler) Get(c *gin.Context) {
	state, err := h.onboarding.State(dbc(c), callerID(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, state)
}

// POST /api/onboarding
func (h *OnboardingHandler) Submit(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondAPIError(c, badJSON(err))
		return
	}
	u, err := h.onboarding.Submit(dbc(c), callerID(c), payload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":           "Onboarding completed",
		"account_type":      u.AccountType,
		"onboarding_status": u.OnboardingStatus,
	})
}
