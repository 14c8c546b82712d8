package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/platform/apierr"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

type IdentityHandler struct {
	resolver identity.Resolver
	log      *logger.Logger
}

func NewIdentityHandler(resolver identity.Resolver, log *logger.Logger) *IdentityHandler {
	return &IdentityHandler{
		resolver: resolver,
		log:      log.With("handler", "IdentityHandler"),
	}
}

// POST /api/identity
// body: { "token": "..." } — optional; an empty or absent token mints a new
// anonymous identity. An existing token may also ride the Authorization
// header. Invalid tokens are rejected rather than silently re-minted so a
// client cannot lose its profile to a transcription error.
func (h *IdentityHandler) Resolve(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
			return
		}
	}
	if req.Token == "" {
		req.Token = bearerToken(c)
	}

	ident, err := h.resolver.Resolve(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, err)
			return
		}
		response.RespondServiceError(c, err)
		return
	}

	if ident.Created {
		h.log.Info("identity minted", "user_id", ident.UserID.String())
	}
	response.RespondOK(c, gin.H{
		"user_id": ident.UserID,
		"token":   ident.Token,
		"created": ident.Created,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
