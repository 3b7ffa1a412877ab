package middleware

import (
	"strconv"
	"sync"
	"time"

	"ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the rate limiter
type RateLimiterOptions struct {
	// Limit defines requests per second
	Limit rate.Limit
	// Burst defines maximum burst size allowed
	Burst int
	// ExpiryDuration defines how long to keep client state in memory
	ExpiryDuration time.Duration
	// CleanupInterval defines how often idle clients are swept
	CleanupInterval time.Duration
	// KeyFunc extracts the limiting key from a request (e.g. IP, user ID)
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions returns sensible defaults
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:           5,
		Burst:           10,
		ExpiryDuration:  time.Hour,
		CleanupInterval: time.Minute,
		KeyFunc:         IPKey,
	}
}

// IPKey limits per client IP
func IPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ClientKey limits per authenticated user, falling back to the IP. It only
// sees the user when mounted after RequireSession.
func ClientKey(c *gin.Context) string {
	if id, ok := UserIDFrom(c); ok {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return IPKey(c)
}

// client represents a rate limiter client
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements rate limiting middleware for Gin
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*client
	logger  *logger.Logger
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = IPKey
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	return &RateLimiter{
		options: opts,
		clients: make(map[string]*client),
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	r.once.Do(func() { go r.cleanup() })

	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)
		limiter := r.getLimiter(key)

		if !limiter.Allow() {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Burst))
			_ = c.Error(errors.NewTooManyRequestsError(errors.CodeRateLimited, "Too many requests. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}

// Stop ends the background cleanup loop
func (r *RateLimiter) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// getLimiter returns a rate limiter for the given key
func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.clients[key]
	if !exists {
		limiter := rate.NewLimiter(r.options.Limit, r.options.Burst)
		r.clients[key] = &client{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanup removes idle entries from the clients map
func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(r.options.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *RateLimiter) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.clients {
		if now.Sub(v.lastSeen) > r.options.ExpiryDuration {
			delete(r.clients, k)
		}
	}
}
