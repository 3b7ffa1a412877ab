package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-companion/backend/pkg/jwt"
	"ai-companion/backend/shared/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "sid-1", 9, time.Hour))
	id, err := s.Lookup(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, uint(9), id)

	require.NoError(t, s.Delete(ctx, "sid-1"))
	_, err = s.Lookup(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, "sid-1"))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(0))
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Save(context.Background(), "sid", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := s.Lookup(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewRedisClient(redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storeContract(t, NewRedisStore(client))
}

func TestRedisStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewRedisClient(redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)

	require.NoError(t, s.Save(context.Background(), "sid", 3, time.Minute))
	assert.True(t, mr.Exists("session:sid"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Lookup(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	tokens, err := jwt.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewManager(NewMemoryStore(0), tokens, CookieConfig{Name: "sess"})
}

func TestManagerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	// start
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	require.NoError(t, m.Start(c, 5))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "sess", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	// resolve with the cookie
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	c2.Request.AddCookie(cookie)
	sess, err := m.Resolve(c2)
	require.NoError(t, err)
	assert.Equal(t, uint(5), sess.UserID)

	// resolve with a bearer header
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	c3.Request.Header.Set("Authorization", "Bearer "+cookie.Value)
	_, err = m.Resolve(c3)
	require.NoError(t, err)

	// end
	w4 := httptest.NewRecorder()
	c4, _ := gin.CreateTestContext(w4)
	c4.Request = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	c4.Request.AddCookie(cookie)
	require.NoError(t, m.End(c4))
	cleared := w4.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)

	_, err = m.Lookup(context.Background(), cookie.Value)
	assert.True(t, IsNotFound(err), "revoked token must not resolve")
}

func TestResolveWithoutToken(t *testing.T) {
	m := newManager(t)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/user", nil)

	_, err := m.Resolve(c)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupRejectsGarbage(t *testing.T) {
	m := newManager(t)
	_, err := m.Lookup(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Revoke(context.Background(), "garbage"))
}
