package router

import (
	"net/http"

	"ai-companion/backend/internal/api"
	"ai-companion/backend/internal/ws"
	"ai-companion/backend/pkg/config"
	"ai-companion/backend/pkg/di"
	"ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/middleware"
	"ai-companion/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config

	limiter     *middleware.RateLimiter
	userLimiter *middleware.RateLimiter
	schema      *validator.OpenAPIValidator
}

// New creates a router with the global middleware chain installed
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "Invalid trusted proxies, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}

	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(cfg.Security.RateLimit)
	opts.Burst = cfg.Security.RateLimitBurst
	limiter := middleware.NewRateLimiter(container.Logger, opts)

	userOpts := opts
	userOpts.KeyFunc = middleware.ClientKey
	userLimiter := middleware.NewRateLimiter(container.Logger, userOpts)

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(limiter.Middleware())
	engine.Use(middleware.BodyLimit(cfg.Security.MaxBodySize))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
		limiter:     limiter,
		userLimiter: userLimiter,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	authHandler := api.NewAuthHandler(c.UserService, c.Sessions)
	prefHandler := api.NewPreferenceHandler(c.PreferenceService)
	messageHandler := api.NewMessageHandler(c.ChatService)
	wsHandler := ws.NewHandler(c.Hub, c.Sessions, r.Config.Security.AllowedOrigins)

	r.setupHealthRoutes()

	validate := r.openAPIMiddleware()

	apiGroup := r.Engine.Group("/api")

	public := apiGroup.Group("", validate)
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/logout", authHandler.Logout)
	}

	// bodies are validated only once the caller is known, so anonymous
	// requests get a 401 whatever they send
	protected := apiGroup.Group("", middleware.RequireSession(c.Sessions), r.userLimiter.Middleware(), validate)
	{
		protected.GET("/user", authHandler.Me)

		protected.GET("/preferences", prefHandler.Get)
		protected.POST("/preferences", prefHandler.Save)

		protected.GET("/messages", messageHandler.List)
		protected.POST("/messages", messageHandler.Send)
	}

	// the websocket handler resolves its own session so it can answer 401 before upgrading
	apiGroup.GET("/ws", wsHandler.ServeWs)

	r.setupStaticRoutes()
}

// Stop releases background resources held by the middleware
func (r *Router) Stop() {
	r.limiter.Stop()
	r.userLimiter.Stop()
}

// ServeHTTP lets the router be used directly as an http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Engine.ServeHTTP(w, req)
}
