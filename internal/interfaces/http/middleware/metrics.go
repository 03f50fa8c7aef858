package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and latency per route template.
func Metrics(metrics *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(metrics, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
