package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/platform/apierr"
	"github.com/yungbote/skillquest-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/services"
	"github.com/yungbote/skillquest-backend/internal/sse"
	"github.com/yungbote/skillquest-backend/internal/types"
)

type ProfileHandler struct {
	loader services.ProfileLoader
	reset  services.ResetService
	subs   services.SubscriptionService
	hub    *sse.Hub
	log    *logger.Logger
}

func NewProfileHandler(
	loader services.ProfileLoader,
	reset services.ResetService,
	subs services.SubscriptionService,
	hub *sse.Hub,
	log *logger.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		loader: loader,
		reset:  reset,
		subs:   subs,
		hub:    hub,
		log:    log.With("handler", "ProfileHandler"),
	}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	uid, ok := requestUserID(c)
	if !ok {
		return
	}
	profile, err := h.loader.Load(c.Request.Context(), uid)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if profile == nil {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, services.ErrProfileNotFound)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// GET /api/profile/stream
// text/event-stream. EventSource clients authenticate with ?token= because
// they cannot set headers.
func (h *ProfileHandler) Stream(c *gin.Context) {
	uid, ok := requestUserID(c)
	if !ok {
		return
	}

	client := h.hub.NewClient(uid)
	h.hub.Subscribe(client, sse.ProfileChannel(uid))

	// Store-driven reloads go straight to this client rather than through the
	// channel: each subscription carries its own last-delivered revision, and
	// a second stream for the same user must get its own deliveries.
	unsubscribe := h.subs.SubscribeToProfile(c.Request.Context(), uid, func(p *types.IntegratedUserProfile) {
		msg := sse.Message{Channel: sse.ProfileChannel(uid)}
		if p == nil {
			msg.Event = sse.EventProfileReset
		} else {
			msg.Event = sse.EventProfileUpdated
			msg.Data = gin.H{"profile": p}
		}
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("dropping profile update; stream buffer full",
				"user_id", uid.String(), "client_id", client.ID.String())
		}
	})

	h.log.Info("profile stream open", "user_id", uid.String(), "client_id", client.ID.String())
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	// Unsubscribe first: it blocks until any in-flight delivery finishes, so
	// closing the outbound channel afterwards cannot race a send.
	unsubscribe()
	h.hub.CloseClient(client)
	h.log.Info("profile stream closed", "user_id", uid.String(), "client_id", client.ID.String())
}

// POST /api/profile/reset
func (h *ProfileHandler) Reset(c *gin.Context) {
	uid, ok := requestUserID(c)
	if !ok {
		return
	}
	if err := h.reset.Reset(c.Request.Context(), uid); err != nil {
		if errors.Is(err, services.ErrResetIncomplete) {
			response.RespondError(c, http.StatusServiceUnavailable, apierr.CodeUnavailable, err)
			return
		}
		response.RespondServiceError(c, err)
		return
	}

	h.hub.Broadcast(sse.Message{
		Channel: sse.ProfileChannel(uid),
		Event:   sse.EventProfileReset,
	})
	response.RespondOK(c, gin.H{"reset": true})
}

// requestUserID pulls the authenticated user out of the request context. The
// auth middleware guarantees it on protected routes; a miss means the route
// was wired without RequireAuth.
func requestUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}
