package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/metrics"
)

// Metrics records in-flight count, total and duration of every request,
// labelled by route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		m.IncrementInFlight()
		defer m.DecrementInFlight()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.RecordHTTPRequest(ctx.Request.Method, path, ctx.Writer.Status(), time.Since(start))
	}
}
