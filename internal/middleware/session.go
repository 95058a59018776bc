package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mokanichokani/ledger-service/internal/observability"
)

const (
	HeaderSessionID  = "X-Session-ID"
	HeaderSessionEnd = "X-Session-End"
)

// SessionSink receives session lifecycle signals. Both directions are
// idempotent on the sink side, so replayed headers are harmless.
type SessionSink interface {
	TrackSession(sessionID string, active bool)
	ActiveSessions() int
}

// SessionTracker maintains the active-session set from request headers. A
// request carrying X-Session-ID marks that session active; adding
// X-Session-End: true retires it once the request finishes, so the final
// call of a session still executes within it.
func SessionTracker(sessions SessionSink, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(HeaderSessionID))
		if sessionID == "" {
			c.Next()
			return
		}

		c.Set("sessionId", sessionID)
		sessions.TrackSession(sessionID, true)
		m.SetActiveSessions(sessions.ActiveSessions())

		c.Next()

		if ended, err := strconv.ParseBool(strings.TrimSpace(c.GetHeader(HeaderSessionEnd))); err == nil && ended {
			sessions.TrackSession(sessionID, false)
			m.SetActiveSessions(sessions.ActiveSessions())
		}
	}
}

func GetSessionID(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get("sessionId")
	if !exists {
		return "", false
	}
	return sessionID.(string), true
}
