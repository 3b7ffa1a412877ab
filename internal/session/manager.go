package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-companion/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// Session is a resolved, live session
type Session struct {
	ID     string
	UserID uint
}

// CookieConfig controls how the session cookie is written
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
}

// Manager issues, resolves and revokes sessions
type Manager struct {
	store  Store
	tokens *jwt.Service
	cookie CookieConfig
}

func NewManager(store Store, tokens *jwt.Service, cookie CookieConfig) *Manager {
	if cookie.Name == "" {
		cookie.Name = "companion_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &Manager{store: store, tokens: tokens, cookie: cookie}
}

// TTL is the lifetime of a session and its cookie
func (m *Manager) TTL() time.Duration {
	return m.tokens.Expiry()
}

// Create stores a new session for userID and returns the signed token naming it
func (m *Manager) Create(ctx context.Context, userID uint) (string, error) {
	sid := ulid.Make().String()
	if err := m.store.Save(ctx, sid, userID, m.TTL()); err != nil {
		return "", err
	}
	token, err := m.tokens.GenerateToken(userID, sid)
	if err != nil {
		_ = m.store.Delete(ctx, sid)
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Lookup validates token and confirms the session still exists
func (m *Manager) Lookup(ctx context.Context, token string) (*Session, error) {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return nil, ErrNotFound
	}
	userID, err := m.store.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	// a token must not be replayed against another user's session
	if userID != claims.UserID {
		return nil, ErrNotFound
	}
	return &Session{ID: claims.SessionID, UserID: userID}, nil
}

// Revoke deletes the session named by token. Unknown or invalid tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.SessionID)
}

// Start creates a session and writes its cookie
func (m *Manager) Start(c *gin.Context, userID uint) error {
	token, err := m.Create(c.Request.Context(), userID)
	if err != nil {
		return err
	}
	m.writeCookie(c, token, int(m.TTL().Seconds()))
	return nil
}

// Resolve returns the session attached to the request
func (m *Manager) Resolve(c *gin.Context) (*Session, error) {
	token := m.TokenFromRequest(c)
	if token == "" {
		return nil, ErrNotFound
	}
	return m.Lookup(c.Request.Context(), token)
}

// ResolveUserID satisfies middleware.SessionResolver
func (m *Manager) ResolveUserID(c *gin.Context) (uint, error) {
	sess, err := m.Resolve(c)
	if err != nil {
		return 0, err
	}
	return sess.UserID, nil
}

// End revokes the request's session, if any, and clears the cookie
func (m *Manager) End(c *gin.Context) error {
	var err error
	if token := m.TokenFromRequest(c); token != "" {
		err = m.Revoke(c.Request.Context(), token)
	}
	m.writeCookie(c, "", -1)
	return err
}

// TokenFromRequest reads the session cookie, falling back to a bearer header
func (m *Manager) TokenFromRequest(c *gin.Context) string {
	if v, err := c.Cookie(m.cookie.Name); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (m *Manager) writeCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, value, maxAge, m.cookie.Path, "", m.cookie.Secure, true)
}

// IsNotFound reports whether err means the caller has no live session
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
