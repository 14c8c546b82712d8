package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/skillquest-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext stores the correlation pair in the request context and
// echoes it on the response so clients can quote it back. Precedence for the
// trace id: inbound header, then the otel span (when instrumentation is on),
// then a freshly minted uuid.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tr := ctxutil.Trace{
			TraceID:   strings.TrimSpace(c.GetHeader(headerTraceID)),
			RequestID: strings.TrimSpace(c.GetHeader(headerRequestID)),
		}
		if tr.TraceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				tr.TraceID = sc.TraceID().String()
			} else {
				tr.TraceID = uuid.New().String()
			}
		}
		if tr.RequestID == "" {
			tr.RequestID = uuid.New().String()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTrace(c.Request.Context(), tr))
		c.Writer.Header().Set(headerTraceID, tr.TraceID)
		c.Writer.Header().Set(headerRequestID, tr.RequestID)
		c.Next()
	}
}
