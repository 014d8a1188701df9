package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is pushed to the waiting page.
type Message struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Route  string `json:"route,omitempty"`
}

const (
	TypeStatus   = "status"
	TypeRedirect = "redirect"
)

// Hub tracks the open status sockets of pending users so an approval can
// trigger an immediate re-check instead of waiting for the next tick.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Send queues msg for c. It reports false when c is gone or its buffer is
// full.
func (h *Hub) Send(c *Client, msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Nudge asks every socket watching userID to re-check now. It returns the
// number of sockets nudged.
func (h *Hub) Nudge(userID string) int {
	if userID == "" {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.nudge <- struct{}{}:
		default:
			// A re-check is already pending.
		}
		n++
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
