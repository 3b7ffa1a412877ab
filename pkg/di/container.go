package di

import (
	"fmt"
	"net/http"
	"time"

	"ai-companion/backend/ai"
	"ai-companion/backend/internal/service"
	"ai-companion/backend/internal/session"
	"ai-companion/backend/internal/store"
	"ai-companion/backend/internal/ws"
	"ai-companion/backend/pkg/cache"
	"ai-companion/backend/pkg/config"
	"ai-companion/backend/pkg/health"
	"ai-companion/backend/pkg/jwt"
	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/resilience"
	"ai-companion/backend/shared/observability"
	"ai-companion/backend/shared/redis"

	"gorm.io/gorm"
)

const healthPeriod = 30 * time.Second

// Container holds all the dependencies for the application
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *gorm.DB
	Store    store.Store
	Redis    *redis.RedisClient
	Sessions *session.Manager
	Provider *ai.GuardedProvider
	Metrics  *observability.ChatMetrics
	Hub      *ws.Hub
	Health   *health.Checker

	UserService       *service.UserService
	PreferenceService *service.PreferenceService
	ChatService       *service.ChatService

	ownsRedis bool
}

// Option overrides a dependency the container would otherwise build
type Option func(*options)

type options struct {
	provider   ai.Provider
	redis      *redis.RedisClient
	registry   *ai.Registry
	httpClient *http.Client
}

// WithProvider replaces the configured completion provider
func WithProvider(p ai.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithRedis supplies an existing redis client for the session store
func WithRedis(c *redis.RedisClient) Option {
	return func(o *options) { o.redis = c }
}

// WithRegistry replaces the provider registry
func WithRegistry(r *ai.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithHTTPClient sets the client used for provider calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates the dependency container. A nil db selects the in-memory store.
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	o := &options{registry: ai.DefaultRegistry()}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{Config: cfg, Logger: log, DB: db}

	if db != nil {
		c.Store = store.NewGormStore(db)
	} else {
		log.Warn("No database configured, using the in-memory store")
		c.Store = store.NewMemoryStore()
	}

	sessionStore, err := c.sessionStore(o)
	if err != nil {
		return nil, err
	}
	tokens, err := jwt.NewService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}
	c.Sessions = session.NewManager(sessionStore, tokens, session.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.IsProduction(),
	})

	c.Metrics, err = observability.NewChatMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("chat metrics: %w", err)
	}

	provider := o.provider
	if provider == nil {
		provider, err = o.registry.Build(cfg.LLM.Provider, ai.ProviderConfig{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			HTTPClient: o.httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("completion provider: %w", err)
		}
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "llm-" + cfg.LLM.Provider,
		FailureThreshold: cfg.LLM.BreakerFailures,
		SuccessThreshold: 1,
		RetryTimeout:     cfg.LLM.BreakerCooldown,
	}, log)
	c.Provider = ai.NewGuardedProvider(cfg.LLM.Provider, provider, breaker, cfg.LLM.Timeout, c.Metrics)

	c.Hub = ws.NewHub(log)

	var prefCache *cache.Cache
	if cfg.Cache.Enabled {
		prefCache = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow)
	}

	c.UserService = service.NewUserService(c.Store, log)
	c.PreferenceService = service.NewPreferenceService(c.Store, prefCache)
	c.ChatService = service.NewChatService(c.Store, c.PreferenceService, c.Provider, c.Hub, c.Metrics, service.ChatConfig{
		ContextWindow: cfg.Chat.ContextWindow,
		MaxTokens:     cfg.LLM.MaxTokens,
	}, log)

	c.Health = health.NewChecker(log, healthPeriod)
	c.Health.RegisterDatabaseCheck(c.Store.Ping)
	if c.Redis != nil {
		c.Health.RegisterRedisCheck(c.Redis.Ping)
	}
	c.Health.RegisterBreakerCheck("llm", c.Provider.BreakerState)
	c.Health.RegisterGaugeCheck("websocket", "active connections", c.Hub.ActiveConnections)

	return c, nil
}

func (c *Container) sessionStore(o *options) (session.Store, error) {
	switch c.Config.Session.Store {
	case "", "memory":
		return session.NewMemoryStore(c.Config.Cache.PurgeWindow), nil
	case "redis":
		c.Redis = o.redis
		if c.Redis == nil {
			c.Redis = redis.NewRedisClient(redis.Options{
				Addr:     c.Config.Redis.Addr,
				Password: c.Config.Redis.Password,
				DB:       c.Config.Redis.DB,
			})
			c.ownsRedis = true
		}
		return session.NewRedisStore(c.Redis), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", c.Config.Session.Store)
	}
}

// Close releases connections the container opened
func (c *Container) Close() error {
	var firstErr error
	if c.ownsRedis && c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
