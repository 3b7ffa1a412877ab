package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-companion/backend/ai"
	"ai-companion/backend/api"
	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/testutil"
	"ai-companion/backend/pkg/config"
	"ai-companion/backend/pkg/di"
	"ai-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedProvider answers "reply N" or fails while err is set
type scriptedProvider struct {
	mu       sync.Mutex
	calls    int
	err      error
	requests []ai.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req ai.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("reply %d", p.calls), nil
}

func (p *scriptedProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *scriptedProvider) snapshot() (int, []ai.ChatRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]ai.ChatRequest(nil), p.requests...)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Env = "test"
	cfg.Server.StaticDir = ""
	cfg.Server.OpenAPISchema = ""
	cfg.Session.Store = "memory"
	cfg.Session.Secret = "router-test-secret"
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Security.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.LLM.BreakerFailures = 2
	cfg.LLM.BreakerCooldown = time.Minute
	cfg.LLM.Timeout = 5 * time.Second
	cfg.Observability.MetricsEnabled = true
	return cfg
}

type testApp struct {
	server    *httptest.Server
	container *di.Container
	provider  *scriptedProvider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	provider := &scriptedProvider{}
	container, err := di.New(testConfig(), testutil.OpenSQLite(t), logger.Discard(), di.WithProvider(provider))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go container.Hub.Run(ctx)

	r := New(container)
	r.SetupRoutes()
	t.Cleanup(r.Stop)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testApp{server: srv, container: container, provider: provider}
}

// client is a browser-like caller that keeps its session cookie
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (a *testApp) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: a.server.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(c.t, err)
			raw = string(b)
		}
		reader = strings.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *client) register(username, password string) {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/register", gin.H{"username": username, "password": password})
	require.Equal(c.t, http.StatusCreated, code, string(body))
}

func (c *client) configure(name string) {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/preferences", gin.H{
		"name":        name,
		"personality": "curious and kind",
		"interests":   []string{"astronomy"},
	})
	require.Equal(c.t, http.StatusOK, code, string(body))
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope), string(body))
	return envelope.Error.Code
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	c.register("alice", "wonderland")

	code, body := c.do(http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, code)
	var user models.UserResponse
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "alice", user.Username)
	assert.NotContains(t, string(body), "wonderland")

	code, body = c.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Logged out"}`, string(body))

	code, _ = c.do(http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = c.do(http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, body))

	code, _ = c.do(http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "wonderland"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	app.client(t).register("alice", "pw")

	code, body := app.client(t).do(http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "other"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "USERNAME_TAKEN", errorCode(t, body))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/messages"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/preferences"},
		{http.MethodPost, "/api/preferences"},
		{http.MethodGet, "/api/ws"},
	} {
		var body any
		if route.method == http.MethodPost {
			body = gin.H{"content": "hi", "name": "x", "personality": "y"}
		}
		code, _ := c.do(route.method, route.path, body)
		assert.Equal(t, http.StatusUnauthorized, code, "%s %s", route.method, route.path)
	}
}

func TestAnonymousInvalidBodyIsUnauthorized(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, tc := range []struct{ path, body string }{
		{"/api/preferences", `{}`},
		{"/api/preferences", `{"name":"","creativity":9}`},
		{"/api/messages", `{"content":""}`},
		{"/api/messages", `{}`},
	} {
		code, body := c.do(http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusUnauthorized, code, "%s %s", tc.path, tc.body)
		assert.Equal(t, "AUTH_REQUIRED", errorCode(t, body))
	}

	c.register("alice", "pw")
	code, body := c.do(http.MethodPost, "/api/preferences", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestPublicRoutesValidateBodies(t *testing.T) {
	app := newTestApp(t)

	code, body := app.client(t).do(http.MethodPost, "/api/register", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestReloadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, api.Schema, 0o600))

	cfg := testConfig()
	cfg.Server.OpenAPISchema = path
	container, err := di.New(cfg, testutil.OpenSQLite(t), logger.Discard(), di.WithProvider(&scriptedProvider{}))
	require.NoError(t, err)

	r := New(container)
	r.SetupRoutes()
	t.Cleanup(r.Stop)

	require.NoError(t, os.WriteFile(path, []byte("openapi: 3.0.3\ninfo: {}\n"), 0o600))
	assert.Error(t, r.ReloadSchema())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.Schema, w.Body.Bytes(), "the previous document is still served")
}

func TestChatRequiresCompanion(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")

	code, body := c.do(http.MethodGet, "/api/preferences", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))

	code, body = c.do(http.MethodPost, "/api/messages", gin.H{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "COMPANION_NOT_CONFIGURED", errorCode(t, body))

	code, body = c.do(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))
	calls, _ := app.provider.snapshot()
	assert.Zero(t, calls)
}

func TestConversation(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")
	c.configure("Luna")

	code, body := c.do(http.MethodPost, "/api/messages", gin.H{"content": "  hi Luna  "})
	require.Equal(t, http.StatusOK, code, string(body))

	var exchange models.Exchange
	require.NoError(t, json.Unmarshal(body, &exchange))
	require.NotNil(t, exchange.UserMessage)
	require.NotNil(t, exchange.AssistantMessage)
	assert.Equal(t, "hi Luna", exchange.UserMessage.Content)
	assert.Equal(t, models.RoleUser, exchange.UserMessage.Role)
	assert.Equal(t, "reply 1", exchange.AssistantMessage.Content)
	assert.Equal(t, models.RoleAssistant, exchange.AssistantMessage.Role)

	_, requests := app.provider.snapshot()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.Contains(t, req.System, "Luna")
	assert.Contains(t, req.System, "curious and kind")

	code, body = c.do(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, code)
	var history []models.Message
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "hi Luna", history[0].Content)
	assert.Equal(t, "reply 1", history[1].Content)

	other := app.client(t)
	other.register("bob", "pw")
	code, body = other.do(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body), "histories are private")
}

func TestMessageValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")
	c.configure("Luna")

	code, body := c.do(http.MethodPost, "/api/messages", gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	code, _ = c.do(http.MethodPost, "/api/messages", gin.H{"content": strings.Repeat("a", 8001)})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = c.do(http.MethodPost, "/api/messages", `{"content":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, errorCode(t, body))

	calls, _ := app.provider.snapshot()
	assert.Zero(t, calls)
}

func TestPreferenceValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")

	code, body := c.do(http.MethodPost, "/api/preferences", gin.H{
		"name":        "Luna",
		"personality": "calm",
		"creativity":  2,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	code, body = c.do(http.MethodPost, "/api/preferences", gin.H{
		"name":        "Luna",
		"personality": "calm",
		"interests":   []string{},
		"creativity":  0.3,
		"voice":       "female",
	})
	require.Equal(t, http.StatusOK, code, string(body))

	var companion models.Companion
	require.NoError(t, json.Unmarshal(body, &companion))
	settings := companion.Settings.Data()
	assert.Equal(t, "Luna", settings.Name)
	require.NotNil(t, settings.Creativity)
	assert.InDelta(t, 0.3, *settings.Creativity, 1e-9)
	assert.Equal(t, "female", settings.Voice)
}

func TestPreferenceInterests(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")

	code, body := c.do(http.MethodPost, "/api/preferences", gin.H{"name": "Luna", "personality": "calm"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
	assert.Contains(t, string(body), "interests")

	padded := append(make([]string, 21), "chess")
	for i := range padded[:21] {
		padded[i] = "  "
	}
	code, body = c.do(http.MethodPost, "/api/preferences", gin.H{"name": "Luna", "personality": "calm", "interests": padded})
	require.Equal(t, http.StatusOK, code, string(body))
	var companion models.Companion
	require.NoError(t, json.Unmarshal(body, &companion))
	assert.Equal(t, []string{"chess"}, companion.Settings.Data().Interests)

	tooMany := make([]string, 21)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("topic %d", i)
	}
	code, body = c.do(http.MethodPost, "/api/preferences", gin.H{"name": "Luna", "personality": "calm", "interests": tooMany})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestProviderFailureMapping(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")
	c.configure("Luna")

	app.provider.fail(errors.New("upstream exploded"))

	for i := 0; i < 2; i++ {
		code, body := c.do(http.MethodPost, "/api/messages", gin.H{"content": fmt.Sprintf("try %d", i)})
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, "LLM_UNAVAILABLE", errorCode(t, body))
	}

	code, body := c.do(http.MethodPost, "/api/messages", gin.H{"content": "again"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "LLM_CIRCUIT_OPEN", errorCode(t, body))
	calls, _ := app.provider.snapshot()
	assert.Equal(t, 2, calls, "an open breaker does not reach the provider")

	code, body = c.do(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, code)
	var history []models.Message
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history, 3, "user messages stay stored when the reply fails")
	for _, m := range history {
		assert.Equal(t, models.RoleUser, m.Role)
	}

	code, body = c.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code, "an open breaker only degrades the service")
	assert.Contains(t, string(body), `"degraded"`)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, path := range []string{"/health", "/api/health"} {
		code, body := c.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, code, path)
		var report struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}
		require.NoError(t, json.Unmarshal(body, &report))
		assert.Equal(t, "ok", report.Status)
		assert.Contains(t, report.Components, "database")
		assert.Contains(t, report.Components, "llm")
	}

	code, body := c.do(http.MethodGet, "/api/health/live", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"ok"`)

	code, _ = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = c.do(http.MethodGet, "/api/docs/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, bytes.HasPrefix(body, []byte("openapi:")))
}

func TestUnknownAPIRoute(t *testing.T) {
	app := newTestApp(t)

	code, body := app.client(t).do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestWebSocketReceivesExchange(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	c.register("alice", "pw")
	c.configure("Luna")

	header := http.Header{"Origin": {"http://localhost:5173"}}
	for _, cookie := range c.http.Jar.Cookies(mustURL(t, app.server.URL)) {
		header.Add("Cookie", cookie.String())
	}
	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.Eventually(t, func() bool { return app.container.Hub.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	code, _ := c.do(http.MethodPost, "/api/messages", gin.H{"content": "hello"})
	require.Equal(t, http.StatusOK, code)

	var roles []models.Role
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event struct {
			Type    string         `json:"type"`
			Content models.Message `json:"content"`
		}
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, "message", event.Type)
		roles = append(roles, event.Content.Role)
	}
	assert.Equal(t, []models.Role{models.RoleUser, models.RoleAssistant}, roles)
}
