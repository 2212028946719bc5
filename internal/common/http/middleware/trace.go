package middleware

import (
	"context"
	"strings"

	"arbiter/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceIDHeader = "X-Trace-Id"

// TraceContextMiddleware ensures a trace id is present in the request context
// and echoed in the response headers.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(contextkey.TraceID, traceID)
		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(traceIDHeader, traceID)

		c.Next()
	}
}
