package router

import (
	"net/http"

	"ai-companion/backend/api"
	"ai-companion/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// openAPIMiddleware builds the request validator from the embedded
// document, or from OPENAPI_SCHEMA_PATH when set, and serves the document.
// Without a usable document requests pass unvalidated.
func (r *Router) openAPIMiddleware() gin.HandlerFunc {
	path := r.Config.Server.OpenAPISchema

	var err error
	if path != "" {
		r.schema, err = validator.NewOpenAPIValidator(path)
	} else {
		r.schema, err = validator.NewOpenAPIValidatorFromData(api.Schema)
	}
	if err != nil {
		r.schema = nil
		r.Logger.LogError(err, "Failed to initialize OpenAPI validator, skipping validation")
		return func(c *gin.Context) { c.Next() }
	}
	r.Logger.Info("OpenAPI validation enabled", "schema", path)

	r.Engine.GET("/api/docs/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", r.schema.Document())
	})
	return r.schema.Middleware()
}

// ReloadSchema re-reads the OpenAPI document. On failure the current one
// stays active.
func (r *Router) ReloadSchema() error {
	if r.schema == nil {
		return nil
	}
	if err := r.schema.ReloadSchema(); err != nil {
		return err
	}
	r.Logger.Info("OpenAPI schema reloaded")
	return nil
}
