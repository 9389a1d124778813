// Package hub fans push events out to every connected websocket client and
// feeds client-originated events to the server.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/logging"
)

// client is one connected peer. Writes are serialized per connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub owns the set of connected clients. OnEvent receives every decoded
// inbound envelope; it runs on the connection's read goroutine.
type Hub struct {
	logger  logging.Logger
	onEvent func(push.Envelope)

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(logger logging.Logger, onEvent func(push.Envelope)) *Hub {
	return &Hub{
		logger:  logger,
		onEvent: onEvent,
		clients: make(map[*client]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and pumps inbound frames until the peer
// disconnects. Authentication happens before the upgrade, in the server.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info(r.Context(), "push client connected", "clients", count)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close()
		h.logger.Info(context.Background(), "push client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env push.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn(r.Context(), "dropping malformed push frame", "error", err)
			continue
		}
		if h.onEvent != nil {
			h.onEvent(env)
		}
	}
}

// Broadcast sends one event to every connected client. Clients whose write
// fails are dropped; their read loop cleans them up.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(context.Background(), "encoding broadcast payload", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(push.Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error(context.Background(), "encoding broadcast envelope", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(frame); err != nil {
			h.logger.Warn(context.Background(), "broadcast write failed", "event", event, "error", err)
			_ = c.conn.Close()
		}
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
