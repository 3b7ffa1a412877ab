package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)

		start := time.Now()
		c.Next()

		// the session middleware runs after us, so the user is known only now
		if userID, ok := c.Get("userId"); ok {
			reqLogger = reqLogger.WithUserID(fmt.Sprintf("%v", userID))
		}

		reqLogger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// FromContext returns the request-scoped logger, or the global one outside a request
func FromContext(c *gin.Context) *Logger {
	if c != nil {
		if l, ok := c.Get(ContextKey); ok {
			if reqLogger, ok := l.(*Logger); ok {
				return reqLogger
			}
		}
	}
	return GetGlobal()
}
