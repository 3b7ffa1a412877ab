// Package ws pushes newly stored chat messages to a user's open websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/pkg/logger"
)

// Event is the frame written to clients
type Event struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

type delivery struct {
	userID  uint
	payload []byte
}

// Hub tracks connections per user. All map access happens on the Run goroutine.
type Hub struct {
	clients    map[uint]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan delivery
	done       chan struct{}
	active     atomic.Int64
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and deliveries until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[uint]map[*Client]struct{})
			h.active.Store(0)
			return

		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.active.Add(1)
			h.log.Debug("Websocket client registered", "user_id", client.userID)

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.events:
			for client := range h.clients[d.userID] {
				select {
				case client.send <- d.payload:
				default:
					h.log.Warn("Dropping slow websocket client", "user_id", d.userID)
					h.remove(client)
				}
			}
		}
	}
}

// join registers client, reporting false once the hub has stopped
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.active.Add(-1)
}

// Publish queues msg for every connection the user has open. It never blocks.
func (h *Hub) Publish(userID uint, msg models.Message) {
	payload, err := json.Marshal(Event{Type: "message", Content: msg})
	if err != nil {
		h.log.LogError(err, "Failed to encode websocket event")
		return
	}
	select {
	case h.events <- delivery{userID: userID, payload: payload}:
	default:
		h.log.Warn("Websocket event queue full, dropping event", "user_id", userID)
	}
}

// ActiveConnections reports the number of registered clients
func (h *Hub) ActiveConnections() int {
	return int(h.active.Load())
}
