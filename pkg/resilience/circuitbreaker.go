package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-companion/backend/pkg/logger"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means the circuit is closed and requests are allowed to pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means the circuit is open and requests are being short-circuited
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means the circuit is allowing a limited number of test requests
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreaker implements the Circuit Breaker pattern
type CircuitBreaker struct {
	name             string
	state            CircuitBreakerState
	failureThreshold uint
	successThreshold uint
	retryTimeout     time.Duration
	mutex            sync.Mutex
	failureCount     uint
	successCount     uint
	inFlightProbes   uint
	lastFailureTime  time.Time
	nextAttemptTime  time.Time
	log              *logger.Logger
	now              func() time.Time

	totalFailures    uint64
	totalSuccesses   uint64
	totalRequests    uint64
	totalRejected    uint64
	openCircuitCount uint64
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		RetryTimeout:     30 * time.Second,
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CircuitBreaker{
		name:             config.Name,
		state:            StateClosed,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		retryTimeout:     config.RetryTimeout,
		log:              log,
		now:              time.Now,
	}
}

// Execute runs fn through the circuit breaker. Cancellation of ctx by the
// caller is not counted against the downstream.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		cb.log.Warn("Circuit breaker preventing request", "name", cb.name, "state", string(cb.GetState()))
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn(ctx)

	switch {
	case err == nil:
		cb.recordSuccess()
	case errors.Is(err, context.Canceled):
		cb.releaseProbe()
	default:
		cb.recordFailure()
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
	}
	return err
}

// allowRequest checks if a request should be allowed to proceed
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			cb.totalRejected++
			return false
		}
		cb.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.inFlightProbes+cb.successCount >= cb.successThreshold {
			cb.totalRejected++
			return false
		}
		cb.inFlightProbes++
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) releaseProbe() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if cb.state == StateHalfOpen && cb.inFlightProbes > 0 {
		cb.inFlightProbes--
	}
}

// recordSuccess records a successful request
func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.inFlightProbes--
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.toClosed()
		}
	}
}

// recordFailure records a failed request
func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalFailures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

// toOpen transitions the circuit breaker to the open state
func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openCircuitCount++
	cb.inFlightProbes = 0
	cb.nextAttemptTime = cb.now().Add(cb.retryTimeout)

	cb.log.Info("Circuit breaker opened",
		"name", cb.name,
		"failures", cb.failureCount,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

// toHalfOpen transitions the circuit breaker to the half-open state
func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.name)
}

// toClosed transitions the circuit breaker to the closed state
func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.log.Info("Circuit breaker closed", "name", cb.name)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

// GetMetrics returns the current metrics of the circuit breaker
func (cb *CircuitBreaker) GetMetrics() map[string]any {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return map[string]any{
		"name":               cb.name,
		"state":              string(cb.state),
		"total_requests":     cb.totalRequests,
		"total_failures":     cb.totalFailures,
		"total_successes":    cb.totalSuccesses,
		"total_rejected":     cb.totalRejected,
		"open_circuit_count": cb.openCircuitCount,
		"last_failure_time":  cb.lastFailureTime,
	}
}
