package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/platform/apierr"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/services"
	"github.com/yungbote/skillquest-backend/internal/sse"
)

type QuestHandler struct {
	progress services.ProgressService
	hub      *sse.Hub
	log      *logger.Logger
}

func NewQuestHandler(progress services.ProgressService, hub *sse.Hub, log *logger.Logger) *QuestHandler {
	return &QuestHandler{
		progress: progress,
		hub:      hub,
		log:      log.With("handler", "QuestHandler"),
	}
}

// POST /api/quests/:questId/complete
func (h *QuestHandler) Complete(c *gin.Context) {
	uid, ok := requestUserID(c)
	if !ok {
		return
	}
	questID := c.Param("questId")
	if questID == "" {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, errors.New("quest id required"))
		return
	}

	profile, err := h.progress.CompleteQuest(c.Request.Context(), uid, questID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProfileNotFound), errors.Is(err, services.ErrQuestNotFound):
			response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, err)
		case errors.Is(err, services.ErrTodayFull):
			response.RespondError(c, http.StatusConflict, apierr.CodeConflict, err)
		default:
			response.RespondServiceError(c, err)
		}
		return
	}

	// Completions in restricted mode never produce a remote change event, so
	// open streams learn about them from this broadcast alone.
	h.hub.Broadcast(sse.Message{
		Channel: sse.ProfileChannel(uid),
		Event:   sse.EventQuestCompleted,
		Data:    gin.H{"quest_id": questID, "profile": profile},
	})
	response.RespondOK(c, gin.H{"profile": profile})
}
