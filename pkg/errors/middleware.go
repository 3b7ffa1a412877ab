package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"ai-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the first error attached with c.Error as a JSON envelope
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		log := logger.FromContext(c)
		args := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"error", c.Errors[0].Err.Error(),
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.Error("Request error", args...)
		} else {
			log.Warn("Request rejected", args...)
		}

		if c.Writer.Written() {
			return
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			},
		})
	}
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs the error with the request ID and user ID if available
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				logger.FromContext(c).Error("Panic recovered",
					"error", r,
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				var details any
				if gin.Mode() == gin.DebugMode {
					details = fmt.Sprintf("Panic: %v", r)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":    "SERVER_ERROR",
						"message": "The server encountered an unexpected error",
						"details": details,
					},
				})
			}
		}()

		c.Next()
	}
}
