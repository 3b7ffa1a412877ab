package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-companion/backend/pkg/cache"
	"ai-companion/backend/pkg/config"
	"ai-companion/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultManager reads a single KV v2 secret and serves its fields as keys
type VaultManager struct {
	client *vault.Client
	mount  string
	path   string
	cache  *cache.Cache
	env    EnvManager
	log    *logger.Logger
}

// NewManager returns a VaultManager when Vault is enabled, otherwise an EnvManager
func NewManager(cfg config.VaultConfig, log *logger.Logger) (Manager, error) {
	if !cfg.Enabled {
		return EnvManager{}, nil
	}
	return NewVaultManager(cfg, log)
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(cfg config.VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if cfg.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	vaultConfig.Timeout = 10 * time.Second
	vaultConfig.MaxRetries = 3

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &VaultManager{
		client: client,
		mount:  mount,
		path:   cfg.SecretsPath,
		cache:  cache.New(ttl, 2*ttl),
		log:    log,
	}, nil
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := cache.GetAs[string](m.cache, key); ok {
		return value, nil
	}

	value, err := m.getFromVault(ctx, key)
	if errors.Is(err, ErrSecretNotFound) {
		m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
		value, err = m.env.GetSecret(ctx, key)
	}
	if err != nil {
		return "", err
	}

	m.cache.Set(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Failed to get secret, using default value", "key", key, "error", err.Error())
		}
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault", "mount", m.mount, "path", m.path, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Resolve fills the session secret and llm api key from m when present
func Resolve(ctx context.Context, m Manager, cfg *config.Config) {
	cfg.Session.Secret = m.GetSecretWithDefault(ctx, "session_secret", cfg.Session.Secret)
	cfg.LLM.APIKey = m.GetSecretWithDefault(ctx, "llm_api_key", cfg.LLM.APIKey)
}
