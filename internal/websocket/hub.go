package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const TypeRevision = "revision"

// Message tells clients that the server revision moved. It never carries
// record data; clients pull to catch up.
type Message struct {
	Type     string `json:"type"`
	Revision int64  `json:"revision"`
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	revision atomic.Int64
	logger   *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub and queues the latest known revision
// for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if rev := h.revision.Load(); rev > 0 {
		if data, err := json.Marshal(Message{Type: TypeRevision, Revision: rev}); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// SetRevision records rev as the latest revision without broadcasting.
func (h *Hub) SetRevision(rev int64) {
	h.revision.Store(rev)
}

// BroadcastRevision records rev and tells every connected client about it.
// Older revisions than the one already announced are ignored.
func (h *Hub) BroadcastRevision(rev int64) {
	for {
		cur := h.revision.Load()
		if rev <= cur {
			return
		}
		if h.revision.CompareAndSwap(cur, rev) {
			break
		}
	}
	h.Broadcast(Message{Type: TypeRevision, Revision: rev})
}

// Broadcast sends a message to all connected clients without blocking.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client: the next nudge supersedes this one.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
