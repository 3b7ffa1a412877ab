package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		Env             string
		ReadTimeout     time.Duration
		ShutdownTimeout time.Duration
		StaticDir       string
		OpenAPISchema   string
	}

	// Database configuration
	Database struct {
		Driver   string // postgres, mysql or sqlite
		DSN      string // overrides the host/port fields when set
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Retries  int
		RetryGap time.Duration
	}

	// Session configuration
	Session struct {
		Secret     string
		TTL        time.Duration
		CookieName string
		Store      string // memory or redis
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// LLM provider configuration
	LLM struct {
		Provider  string
		BaseURL   string
		APIKey    string
		Model     string
		MaxTokens int
		Timeout   time.Duration

		BreakerFailures uint
		BreakerCooldown time.Duration
	}

	// Chat behaviour
	Chat struct {
		ContextWindow int
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		PurgeWindow time.Duration
	}

	// Redis connection
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Vault secrets backend
	Vault VaultConfig

	// Observability
	Observability struct {
		ServiceName    string
		TracingEnabled bool
		MetricsEnabled bool
	}

	// GRPC health listener
	GRPC struct {
		Enabled bool
		Port    string
	}
}

// VaultConfig locates the KV v2 secret holding runtime credentials
type VaultConfig struct {
	Enabled     bool
	Address     string
	Token       string
	Namespace   string
	Mount       string
	SecretsPath string
	CacheTTL    time.Duration
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading it on first use.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.StaticDir = getEnvString("STATIC_DIR", "")
	cfg.Server.OpenAPISchema = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", "postgres"))
	cfg.Database.DSN = getEnvString("DATABASE_URL", "")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "companion")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.RetryGap = getEnvDuration("DB_CONNECT_RETRY_DELAY", 5*time.Second)

	cfg.Session.Secret = getEnvString("SESSION_SECRET", "default-session-secret-do-not-use-in-production")
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.Session.CookieName = getEnvString("SESSION_COOKIE", "companion_session")
	cfg.Session.Store = strings.ToLower(getEnvString("SESSION_STORE", "memory"))

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.LLM.Provider = strings.ToLower(getEnvString("LLM_PROVIDER", "openai"))
	cfg.LLM.BaseURL = getEnvString("LLM_BASE_URL", "")
	cfg.LLM.APIKey = getEnvString("LLM_API_KEY", "")
	cfg.LLM.Model = getEnvString("LLM_MODEL", "")
	cfg.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", 1024)
	cfg.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	cfg.LLM.BreakerFailures = uint(getEnvInt("LLM_BREAKER_FAILURES", 5))
	cfg.LLM.BreakerCooldown = getEnvDuration("LLM_BREAKER_COOLDOWN", 30*time.Second)

	cfg.Chat.ContextWindow = getEnvInt("CHAT_CONTEXT_WINDOW", 6)

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "companion-app")
	cfg.Vault.CacheTTL = getEnvDuration("VAULT_CACHE_TTL", 5*time.Minute)

	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "companion-backend")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	cfg.GRPC.Enabled = getEnvBool("GRPC_ENABLED", false)
	cfg.GRPC.Port = getEnvString("GRPC_PORT", "9091")

	return cfg
}

// IsProduction reports whether the server runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
