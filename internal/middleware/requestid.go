package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

// RequestID stamps every request with an identifier: the inbound
// X-Request-ID when the caller supplied one, a fresh uuid otherwise. The
// identifier is echoed on the response so callers can correlate across
// services.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestId", requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) (string, bool) {
	requestID, exists := c.Get("requestId")
	if !exists {
		return "", false
	}
	return requestID.(string), true
}
