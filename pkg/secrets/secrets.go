// Package secrets resolves credentials from Vault with an environment fallback.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// EnvKey turns a secret key such as "llm-api.key" into LLM_API_KEY
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// EnvManager reads secrets straight from the process environment
type EnvManager struct{}

func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(EnvKey(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if value, err := m.GetSecret(ctx, key); err == nil {
		return value
	}
	return defaultValue
}
