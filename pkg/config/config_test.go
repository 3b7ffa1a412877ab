package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 6, cfg.Chat.ContextWindow)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "companion_session", cfg.Session.CookieName)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CHAT_CONTEXT_WINDOW", "10")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("DB_DRIVER", "SQLITE")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 10, cfg.Chat.ContextWindow)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHAT_CONTEXT_WINDOW", "lots")
	t.Setenv("SESSION_TTL", "forever")

	cfg := Load()

	assert.Equal(t, 6, cfg.Chat.ContextWindow)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestNewDBSQLite(t *testing.T) {
	cfg := Load()
	cfg.Server.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file::memory:"

	db, err := NewDB(cfg)
	require.NoError(t, err)
	require.NoError(t, TestConnection(db))
}

func TestNewDBUnknownDriver(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "oracle"

	_, err := NewDB(cfg)
	assert.Error(t, err)
}
