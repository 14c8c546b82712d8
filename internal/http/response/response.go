package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillquest-backend/internal/platform/apierr"
)

// APIError is the one error shape this API speaks; every non-2xx body wraps
// it in ErrorEnvelope so clients parse a single structure.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	body := ErrorEnvelope{Error: APIError{Code: code, Message: "unknown error"}}
	if err != nil {
		body.Error.Message = err.Error()
	}
	c.JSON(status, body)
}

// RespondServiceError maps an arbitrary service error onto the envelope,
// classifying store failures by their taxonomy. Handlers that know a more
// specific status should map it themselves before falling through to this.
func RespondServiceError(c *gin.Context, err error) {
	ae := apierr.FromErr(err)
	if ae == nil {
		c.Status(http.StatusOK)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}
