package api

import (
	"net/http"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/service"
	"ai-companion/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// PreferenceHandler reads and replaces the caller's companion settings
type PreferenceHandler struct {
	prefs *service.PreferenceService
}

func NewPreferenceHandler(prefs *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// Get answers with the companion, or null when none is configured
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)

	companion, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if companion == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, companion)
}

// Save replaces every setting with the request body
func (h *PreferenceHandler) Save(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)

	var req models.CompanionSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	companion, err := h.prefs.Save(c.Request.Context(), userID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, companion)
}
