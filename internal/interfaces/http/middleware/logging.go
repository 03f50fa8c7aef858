package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
)

// Logging logs one line per request.  Errors attached to the gin context by
// handlers are included.
func Logging(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
			logging.String("tenant_id", string(TenantFrom(c))),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request handled", fields...)
		}
	}
}
