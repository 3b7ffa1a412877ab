package api

import (
	"net/http"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/service"
	"ai-companion/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// MessageHandler serves the conversation endpoints
type MessageHandler struct {
	chat *service.ChatService
}

func NewMessageHandler(chat *service.ChatService) *MessageHandler {
	return &MessageHandler{chat: chat}
}

// List returns the caller's messages oldest first
func (h *MessageHandler) List(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)

	messages, err := h.chat.History(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

// Send stores the caller's message and returns it with the companion's reply
func (h *MessageHandler) Send(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindError(err))
		return
	}

	exchange, err := h.chat.Send(c.Request.Context(), userID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}
