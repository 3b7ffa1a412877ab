package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, c *Checker) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/health", c.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHandlerHealthy(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterBreakerCheck("llm", func() resilience.CircuitBreakerState { return resilience.StateOpen })

	code, body := serve(t, c)
	assert.Equal(t, http.StatusOK, code, "an open breaker only degrades")
	assert.Equal(t, "ok", body["status"])

	components := body["components"].(map[string]any)
	assert.Equal(t, "up", components["database"].(map[string]any)["status"])
	assert.Equal(t, "degraded", components["llm"].(map[string]any)["status"])
}

func TestHandlerCriticalDown(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return errors.New("connection refused") })

	code, body := serve(t, c)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])

	db := body["components"].(map[string]any)["database"].(map[string]any)
	assert.Equal(t, "down", db["status"])
	assert.Equal(t, "connection refused", db["error"])
}

func TestOnChangeAndStart(t *testing.T) {
	c := NewChecker(logger.Discard(), 10*time.Millisecond)
	healthy := make(chan bool, 16)
	c.OnChange(func(h bool) {
		select {
		case healthy <- h:
		default:
		}
	})
	c.RegisterRedisCheck(func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	select {
	case h := <-healthy:
		assert.True(t, h)
	case <-time.After(time.Second):
		t.Fatal("checks did not run")
	}
	assert.Equal(t, []string{"redis", "self"}, c.Components())
}

func TestNotCheckedYetIsDown(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	assert.False(t, c.IsSystemHealthy())

	c.RunChecks(context.Background())
	assert.True(t, c.IsSystemHealthy())
}

func TestGaugeCheck(t *testing.T) {
	c := NewChecker(logger.Discard(), time.Minute)
	c.RegisterGaugeCheck("websocket", "active connections", func() int { return 3 })
	c.RunChecks(context.Background())

	assert.Equal(t, "active connections: 3", c.GetStatus()["websocket"].Description)
}
