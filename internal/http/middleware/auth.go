package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

type AuthMiddleware struct {
	log      *logger.Logger
	resolver identity.Resolver
}

func NewAuthMiddleware(log *logger.Logger, resolver identity.Resolver) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("Middleware", "AuthMiddleware"),
		resolver: resolver,
	}
}

// RequireAuth rejects requests without a verifiable device token and attaches
// the resolved identity to the request context. The token is read from a
// token query parameter first (EventSource connections cannot set headers),
// then from the Authorization bearer header.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := deviceToken(c)
		if token == "" {
			abortWithEnvelope(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		userID, err := am.resolver.Verify(token)
		if err != nil {
			am.log.Debug("token verification failed", "error", err)
			abortWithEnvelope(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		if userID == uuid.Nil {
			abortWithEnvelope(c, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID: userID,
			Token:  token,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func deviceToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func abortWithEnvelope(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, response.ErrorEnvelope{
		Error: response.APIError{Message: msg, Code: code},
	})
}
