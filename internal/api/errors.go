package api

import (
	"errors"
	"strings"

	"ai-companion/backend/internal/service"
	apperrors "ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error codes returned by the handlers in this package
const (
	CodeUsernameTaken          = "USERNAME_TAKEN"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeCompanionNotConfigured = "COMPANION_NOT_CONFIGURED"
	CodeLLMUnavailable         = "LLM_UNAVAILABLE"
	CodeLLMCircuitOpen         = "LLM_CIRCUIT_OPEN"
	CodeInvalidJSON            = "INVALID_JSON"
)

// fail records err for the error middleware and stops the chain
func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}

func toAppError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if verr, ok := service.IsValidation(err); ok {
		return apperrors.NewValidationError("Invalid input", verr.Fields)
	}

	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return apperrors.NewBadRequestError(CodeUsernameTaken, "Username already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorizedError(CodeInvalidCredentials, "Invalid username or password")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required")
	case errors.Is(err, service.ErrCompanionNotConfigured):
		return apperrors.NewBadRequestError(CodeCompanionNotConfigured, "Companion not configured")
	case errors.Is(err, service.ErrEmptyMessage):
		return apperrors.NewValidationError("Message content is required", map[string]string{"content": "is required"})
	case errors.Is(err, resilience.ErrCircuitOpen):
		return apperrors.NewServiceUnavailableError(CodeLLMCircuitOpen, "The companion is temporarily unavailable, try again shortly").WithCause(err)
	case errors.Is(err, service.ErrProviderUnavailable):
		return apperrors.NewBadGatewayError(CodeLLMUnavailable, "The companion could not respond, try again").WithCause(err)
	}
	return apperrors.FromError(err)
}

// bindError turns a gin binding failure into a 400 with per-field details
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[jsonField(fe)] = describe(fe)
		}
		return apperrors.NewValidationError("Invalid input", details)
	}
	return apperrors.NewBadRequestError(CodeInvalidJSON, "Request body must be valid JSON").WithCause(err)
}

func jsonField(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.Namespace()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}
