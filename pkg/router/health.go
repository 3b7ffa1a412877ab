package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ai-companion/backend/internal/api"
	"ai-companion/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupHealthRoutes registers the probes and the metrics scrape endpoint
func (r *Router) setupHealthRoutes() {
	healthHandler := r.Container.Health.Handler()

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)
	r.Engine.GET("/api/health/live", api.Liveness)

	if r.Config.Observability.MetricsEnabled {
		r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupStaticRoutes serves the built frontend from STATIC_DIR. Unknown
// paths outside /api fall back to index.html for client-side routing.
func (r *Router) setupStaticRoutes() {
	dir := r.Config.Server.StaticDir

	r.Engine.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if dir == "" || strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
			_ = c.Error(errors.NewNotFoundError(errors.CodeNotFound, "Route not found"))
			return
		}

		file := filepath.Join(dir, filepath.Clean("/"+path))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}
