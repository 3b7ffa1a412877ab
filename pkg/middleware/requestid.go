package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey holds the request id in request contexts
	RequestIDKey contextKey = "requestID"
	// UserIDKey holds the session's user id in request contexts
	UserIDKey contextKey = "userID"

	// RequestIDHeader is echoed on every response
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestIDMiddleware keeps a well-formed inbound X-Request-ID or mints a
// uuid, then exposes it to handlers, the request logger and the client.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// validRequestID accepts short ids made of visible ASCII, so a client
// cannot inject newlines or control bytes into log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID returns the request id stored by RequestIDMiddleware
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetUserID returns the user id stored by RequireSession
func GetUserID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}
