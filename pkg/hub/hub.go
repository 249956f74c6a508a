package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	// Registered clients by topic
	clients map[string]map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients for ClientCount
	mu sync.RWMutex

	running atomic.Bool
	done    chan struct{}
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub."+name),
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.topic]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.topic] = set
			}
			set[client] = true
			count := len(set)
			h.mu.Unlock()
			h.logger.Info("client connected", "topic", client.topic, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			count := len(h.clients[client.topic])
			h.mu.Unlock()
			h.logger.Info("client disconnected", "topic", client.topic, "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[message.Topic] {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, drop it.
					h.remove(client)
					h.logger.Warn("dropped slow client", "topic", client.topic)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove unregisters c and closes its queue. Caller holds mu.
func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.topic]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
}

// Broadcast sends a message to all clients subscribed to msg.Topic
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "topic", msg.Topic)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(topic, data))
	return nil
}

// BroadcastBinary broadcasts binary data
func (h *Hub) BroadcastBinary(topic string, data []byte) {
	h.Broadcast(NewBinaryMessage(topic, data))
}

// ClientCount returns the number of clients on topic, or on all topics
// when topic is empty.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if topic != "" {
		return len(h.clients[topic])
	}
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
