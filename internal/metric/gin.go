package metric

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records every request handled by a gin engine. Unmatched routes
// are labelled "unmatched" to keep the path label bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
