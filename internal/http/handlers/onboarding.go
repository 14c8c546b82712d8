package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/platform/apierr"
	"github.com/yungbote/skillquest-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/services"
	"github.com/yungbote/skillquest-backend/internal/sse"
	"github.com/yungbote/skillquest-backend/internal/types"
)

type OnboardingHandler struct {
	integration services.IntegrationService
	hub         *sse.Hub
	log         *logger.Logger
}

func NewOnboardingHandler(integration services.IntegrationService, hub *sse.Hub, log *logger.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		integration: integration,
		hub:         hub,
		log:         log.With("handler", "OnboardingHandler"),
	}
}

// POST /api/onboarding
// body: onboarding answers. Responds with the assembled profile plus the
// per-stage pipeline report; a degraded report still carries a usable
// profile, so clients treat anything but 400 as onboarding complete.
func (h *OnboardingHandler) Submit(c *gin.Context) {
	var answers types.OnboardingAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}

	token := ""
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		token = rd.Token
	}

	profile, report, err := h.integration.Integrate(c.Request.Context(), token, answers)
	if err != nil {
		// Integrate fails only on unusable answers; downstream trouble
		// degrades stages in the report instead of surfacing here.
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}

	if report.Degraded() {
		h.log.Warn("onboarding integrated degraded",
			"user_id", profile.UserID.String(), "used_fallback", report.UsedFallback)
	}

	// Broadcast directly: degraded and restricted runs never reach the remote
	// store, so no change event would tell open streams about the profile.
	h.hub.Broadcast(sse.Message{
		Channel: sse.ProfileChannel(profile.UserID),
		Event:   sse.EventProfileUpdated,
		Data:    gin.H{"profile": profile},
	})

	response.RespondOK(c, gin.H{
		"profile": profile,
		"report":  report,
	})
}
