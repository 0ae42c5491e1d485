package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id and logs its outcome.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		requestID := ctx.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx.Set(types.ContextRequestIDKey, requestID)
		ctx.Header(RequestIDHeader, requestID)

		ctx.Next()

		entry := log.WithFields(logrus.Fields{
			"http.req.id":       requestID,
			"http.req.method":   ctx.Request.Method,
			"http.req.path":     ctx.Request.URL.Path,
			"http.resp.status":  ctx.Writer.Status(),
			"http.resp.bytes":   ctx.Writer.Size(),
			"http.resp.took_ms": time.Since(start).Milliseconds(),
		})

		if len(ctx.Errors) > 0 {
			entry = entry.WithField("errors", ctx.Errors.String())
		}

		switch status := ctx.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request complete")
		}
	}
}

// RequestLog returns the logger entry for the current request.
func RequestLog(ctx *gin.Context, log *logrus.Logger) *logrus.Entry {
	return log.WithField("http.req.id", ctx.GetString(types.ContextRequestIDKey))
}
