// Package validator checks incoming requests against an OpenAPI document.
package validator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	apperrors "ai-companion/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI specification
type OpenAPIValidator struct {
	raw    []byte
	router routers.Router
	read   func() ([]byte, error)
	mutex  sync.RWMutex
}

// NewOpenAPIValidator loads the document at schemaPath. ReloadSchema reads
// the file again.
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	return newValidator(func() ([]byte, error) {
		// read directly: the loader's file reader caches by URI for the
		// life of the process, which would hide edits from ReloadSchema
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", schemaPath, err)
		}
		return data, nil
	})
}

// NewOpenAPIValidatorFromData parses an in-memory document
func NewOpenAPIValidatorFromData(data []byte) (*OpenAPIValidator, error) {
	return newValidator(func() ([]byte, error) { return data, nil })
}

func newValidator(read func() ([]byte, error)) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{read: read}
	if err := v.ReloadSchema(); err != nil {
		return nil, err
	}
	return v, nil
}

func parse(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI schema: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}
	return doc, nil
}

// ReloadSchema reloads the OpenAPI document from its source. The active
// document is replaced only when the new one parses and validates.
func (v *OpenAPIValidator) ReloadSchema() error {
	data, err := v.read()
	if err != nil {
		return err
	}
	doc, err := parse(data)
	if err != nil {
		return err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.raw = data
	v.router = router
	return nil
}

// Document returns the raw bytes of the active document
func (v *OpenAPIValidator) Document() []byte {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.raw
}

// Validate checks r against the document. Requests for paths the
// document does not describe pass.
func (v *OpenAPIValidator) Validate(ctx context.Context, r *http.Request) error {
	v.mutex.RLock()
	router := v.router
	v.mutex.RUnlock()

	route, pathParams, err := router.FindRoute(r)
	if err != nil {
		return nil
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	return openapi3filter.ValidateRequest(ctx, input)
}

// Middleware rejects requests that do not match the document with a 400
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Validate(c.Request.Context(), c.Request); err != nil {
			_ = c.Error(toAppError(err))
			c.Abort()
			return
		}
		c.Next()
	}
}

func toAppError(err error) *apperrors.AppError {
	details := map[string]string{}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			field := "body"
			if ptr := schemaErr.JSONPointer(); len(ptr) > 0 {
				field = ptr[0]
			}
			details[field] = schemaErr.Reason
		} else if reqErr.Parameter != nil {
			details[reqErr.Parameter.Name] = reqErr.Error()
		} else {
			details["body"] = reqErr.Error()
		}
	} else {
		details["request"] = err.Error()
	}

	return apperrors.NewValidationError("Invalid request", details).WithCause(err)
}
