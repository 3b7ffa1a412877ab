package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only ever send small control frames
	maxMessageSize = 4 * 1024
)

// Client is one websocket connection owned by a user
type Client struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
	pongs  chan struct{}
	hub    *Hub
}

// readPump drains the connection. A "ping" event is answered with "pong",
// anything else is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Websocket read error", "user_id", c.userID, "error", err.Error())
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.Type == "ping" {
			select {
			case c.pongs <- struct{}{}:
			default:
			}
		}
	}
}

type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// writeQueued sends up to n queued events. It reports closed when the hub
// closed send mid-drain, after writing the close frame.
func writeQueued(w frameWriter, send <-chan []byte, n int) (closed bool, err error) {
	for i := 0; i < n; i++ {
		msg, ok := <-send
		if !ok {
			_ = w.WriteMessage(websocket.CloseMessage, []byte{})
			return true, nil
		}
		if err := w.WriteMessage(websocket.TextMessage, msg); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// queued events go out as separate frames
			if closed, err := writeQueued(c.conn, c.send, len(c.send)); closed || err != nil {
				return
			}

		case <-c.pongs:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(Event{Type: "pong"}); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
