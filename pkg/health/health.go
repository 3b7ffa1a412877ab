package health

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registration struct {
	check    Check
	critical bool
}

// Checker manages health checks for the system
type Checker struct {
	checks       map[string]registration
	components   map[string]*Component
	checkPeriod  time.Duration
	checkTimeout time.Duration
	listeners    []func(healthy bool)
	mutex        sync.RWMutex
	log          *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	if log == nil {
		log = logger.GetGlobal()
	}
	checker := &Checker{
		checks:       make(map[string]registration),
		components:   make(map[string]*Component),
		checkPeriod:  checkPeriod,
		checkTimeout: 3 * time.Second,
		log:          log,
	}

	checker.RegisterCheck("self", false, func(context.Context) (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registration{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// OnChange registers fn to be called with the overall health after every run
func (c *Checker) OnChange(fn func(healthy bool)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mutex.RUnlock()

	type result struct {
		name        string
		status      Status
		description string
		err         error
	}

	// checks run without holding the lock
	results := make([]result, 0, len(checks))
	for name, reg := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
		status, description, err := reg.check(checkCtx)
		cancel()
		results = append(results, result{name, status, description, err})
	}

	c.mutex.Lock()
	now := time.Now()
	for _, r := range results {
		component, ok := c.components[r.name]
		if !ok {
			continue
		}
		component.Status = r.status
		component.Description = r.description
		component.LastChecked = now

		if r.err != nil {
			component.Error = r.err.Error()
			c.log.Error("Health check failed",
				"component", r.name,
				"status", string(r.status),
				"error", r.err.Error(),
			)
		} else {
			component.Error = ""
			c.log.Debug("Health check completed",
				"component", r.name,
				"status", string(r.status),
			)
		}
	}
	healthy := c.healthyLocked()
	listeners := append([]func(bool){}, c.listeners...)
	c.mutex.Unlock()

	for _, fn := range listeners {
		fn(healthy)
	}
}

// Start runs checks immediately and then every checkPeriod until ctx is done
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns the current health status
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}
	return result
}

// IsSystemHealthy returns true if all critical components are up
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.healthyLocked()
}

func (c *Checker) healthyLocked() bool {
	for _, component := range c.components {
		if component.Critical && component.Status == StatusDown {
			return false
		}
	}
	return true
}

// Components lists component names in sorted order
func (c *Checker) Components() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler runs the checks and reports them. Unhealthy systems answer 503.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.RunChecks(ctx.Request.Context())

		code, status := http.StatusOK, "ok"
		if !c.IsSystemHealthy() {
			code, status = http.StatusServiceUnavailable, "unavailable"
		}

		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": c.GetStatus(),
		})
	}
}

// RegisterDatabaseCheck registers a critical database health check
func (c *Checker) RegisterDatabaseCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("database", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Database connection failed", err
		}
		return StatusUp, "Database connection is established", nil
	})
}

// RegisterRedisCheck registers a critical redis health check
func (c *Checker) RegisterRedisCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("redis", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Redis is unreachable", err
		}
		return StatusUp, "Redis is responding", nil
	})
}

// RegisterBreakerCheck reports a circuit breaker. An open breaker degrades
// the service but does not take it down.
func (c *Checker) RegisterBreakerCheck(name string, state func() resilience.CircuitBreakerState) {
	c.RegisterCheck(name, false, func(context.Context) (Status, string, error) {
		switch s := state(); s {
		case resilience.StateOpen:
			return StatusDegraded, "Circuit open, calls are short-circuited", nil
		case resilience.StateHalfOpen:
			return StatusDegraded, "Circuit half-open, probing", nil
		default:
			return StatusUp, "Circuit closed", nil
		}
	})
}

// RegisterGaugeCheck reports an informational number such as open connections
func (c *Checker) RegisterGaugeCheck(name, label string, value func() int) {
	c.RegisterCheck(name, false, func(context.Context) (Status, string, error) {
		return StatusUp, label + ": " + strconv.Itoa(value()), nil
	})
}
