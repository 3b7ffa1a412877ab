package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUsernameTaken          = errors.New("username already exists")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrUserNotFound           = errors.New("user not found")
	ErrCompanionNotConfigured = errors.New("companion not configured")
	ErrEmptyMessage           = errors.New("message content is required")
	ErrProviderUnavailable    = errors.New("completion provider unavailable")
)

// ValidationError lists rejected input fields and why
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid input (" + strings.Join(parts, ", ") + ")"
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err carries field errors
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}
