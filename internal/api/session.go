package api

import (
	"net/http"
	"strings"

	"storefront/internal/i18n"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHeader carries the visitor's signed session token both ways
const SessionHeader = "X-Session-Token"

const (
	ctxSession = "session"
	ctxLocale  = "locale"
)

// sessionMiddleware resolves the visitor from the token, minting a new
// session when the token is missing or invalid
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(SessionHeader)
		if raw == "" {
			raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		sessionID := ""
		if raw != "" {
			id, err := h.deps.Tokens.Parse(raw)
			if err != nil {
				h.logger.Debug("Rejected session token", zap.Error(err))
			} else {
				sessionID = id
			}
		}

		if sessionID == "" {
			sessionID = session.NewSessionID()
			token, err := h.deps.Tokens.Issue(sessionID)
			if err != nil {
				h.logger.Error("Failed to issue session token", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
				return
			}
			c.Header(SessionHeader, token)
		}

		c.Set(ctxSession, h.deps.Sessions.Get(c.Request.Context(), sessionID))
		c.Set(ctxLocale, i18n.Resolve(c.Query("lang"), c.GetHeader("Accept-Language")))
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(ctxSession).(*session.Session)
}

func locale(c *gin.Context) string {
	return c.GetString(ctxLocale)
}
