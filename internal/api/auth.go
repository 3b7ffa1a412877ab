package api

import (
	"net/http"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/service"
	"ai-companion/backend/internal/session"
	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users    *service.UserService
	sessions *session.Manager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *service.UserService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

// Register creates an account and logs it in
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.sessions.Start(c, user.ID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.ToResponse())
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.sessions.Start(c, user.ID); err != nil {
		fail(c, err)
		return
	}

	logger.FromContext(c).Info("User logged in", "user_id", user.ID)
	c.JSON(http.StatusOK, user.ToResponse())
}

// Logout ends the caller's session. It succeeds without one.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.End(c); err != nil {
		logger.FromContext(c).LogError(err, "Failed to revoke session")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
