package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts, latency and in-flight requests. Paths are
// labelled by route template so that query strings and unknown URLs cannot
// blow up label cardinality.
func Metrics(m *prometheus.ScanMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		method := c.Request.Method
		active := m.HTTPActiveRequests.WithLabelValues(method)
		active.Inc()
		start := time.Now()

		c.Next()

		active.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, method, path, c.Writer.Status(), time.Since(start))
	}
}
