package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Priya8975/crm-automation-dispatch/internal/pubsub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the gateway
	},
}

type outbound struct {
	recipient string
	data      []byte
}

// Hub keeps the WebSocket subscribers and pushes topic messages to them.
// A message addressed to a user only reaches that user's connections and
// connections opened without a userId.
type Hub struct {
	topics     map[string]struct{}
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *slog.Logger
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// NewHub creates a hub that accepts the given topics.
func NewHub(logger *slog.Logger, topics ...string) *Hub {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &Hub{
		topics:     set,
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop. Should be called as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "user_id", c.userID, "total_clients", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "user_id", c.userID, "total_clients", total)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if msg.recipient != "" && c.userID != "" && c.userID != msg.recipient {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			// Slow client, drop it
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("websocket client buffer full, disconnecting", "user_id", c.userID)
		}
	}
}

// Publish queues a topic message for the connected clients.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) error {
	if _, ok := h.topics[topic]; !ok {
		return pubsub.ErrConfigurationMissing
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	data, err := json.Marshal(pubsub.Message{Topic: topic, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	select {
	case h.broadcast <- outbound{recipient: recipientOf(topic, raw), data: data}:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping message", "topic", topic)
	}
	return nil
}

// recipientOf finds the userId either at the top level of the payload or
// inside the object keyed by the topic name.
func recipientOf(topic string, raw []byte) string {
	var target struct {
		UserID string `json:"userId"`
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return ""
	}
	if inner, ok := wrapped[topic]; ok {
		if err := json.Unmarshal(inner, &target); err == nil && target.UserID != "" {
			return target.UserID
		}
	}
	if err := json.Unmarshal(raw, &target); err != nil {
		return ""
	}
	return target.UserID
}

// HandleWebSocket upgrades HTTP connections to WebSocket and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: r.URL.Query().Get("userId"),
		send:   make(chan []byte, 256),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for pongs and disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
