package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
)

type HealthHandler struct {
	modes runmode.Resolver
}

func NewHealthHandler(modes runmode.Resolver) *HealthHandler {
	return &HealthHandler{modes: modes}
}

// GET /healthcheck
// Reports the sync mode alongside liveness so a probe can tell a healthy
// restricted (offline) process apart from a full one.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"mode":   string(h.modes.Resolve()),
	})
}
