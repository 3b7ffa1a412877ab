package middleware

import (
	"context"

	"ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SessionResolver resolves the caller's user id from the request
type SessionResolver interface {
	ResolveUserID(c *gin.Context) (uint, error)
}

// RequireSession aborts with 401 unless the request carries a live session.
// On success the user id is stored under "userId" and in the request context.
func RequireSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := resolver.ResolveUserID(c)
		if err != nil {
			logger.FromContext(c).Debug("Session rejected", "error", err.Error())
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authentication required"))
			c.Abort()
			return
		}

		c.Set("userId", userID)
		ctx := context.WithValue(c.Request.Context(), UserIDKey, userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserIDFrom returns the authenticated user id stored by RequireSession
func UserIDFrom(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userId")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
