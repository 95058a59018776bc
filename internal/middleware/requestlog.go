package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mokanichokani/ledger-service/internal/logger"
)

// RequestLogger writes one structured entry per request, levelled by the
// response status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if requestID, ok := GetRequestID(c); ok {
			fields = append(fields, "request_id", requestID)
		}
		if sessionID, ok := GetSessionID(c); ok {
			fields = append(fields, "session_id", sessionID)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
