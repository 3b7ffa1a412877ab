package ws

import (
	"net/http"
	"time"

	apperrors "ai-companion/backend/pkg/errors"
	"ai-companion/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests and registers them with the hub
type Handler struct {
	hub      *Hub
	sessions middleware.SessionResolver
	upgrader websocket.Upgrader
}

// NewHandler builds the upgrade handler. allowedOrigins follows the CORS
// setting: "*" accepts any origin, requests without an Origin header are
// always accepted.
func NewHandler(hub *Hub, sessions middleware.SessionResolver, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWs handles GET /api/ws
func (h *Handler) ServeWs(c *gin.Context) {
	userID, err := h.sessions.ResolveUserID(c)
	if err != nil {
		_ = c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		c.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		h.hub.log.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		pongs:  make(chan struct{}, 1),
		hub:    h.hub,
	}
	if !h.hub.join(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
