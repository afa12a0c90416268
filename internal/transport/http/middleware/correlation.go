package middleware

import (
	"github.com/GigaElk/schedfleet/internal/correlation"
	"github.com/gin-gonic/gin"
)

// CorrelationID injects a correlation ID into the context and response
// header. If the incoming request already carries X-Correlation-ID, it
// is preserved; otherwise a new UUID v4 is generated.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = correlation.New()
		}

		ctx := correlation.WithID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}
