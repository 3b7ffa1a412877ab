package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is stamped at build time with -ldflags "-X ai-companion/backend/internal/api.Version=..."
var Version = "dev"

// LivenessResponse is the body of the liveness probe
type LivenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Liveness answers as long as the process serves HTTP. Dependency health
// lives on /api/health.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   Version,
	})
}
