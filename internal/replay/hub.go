package replay

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks connected websocket clients. A client whose send fails is
// dropped; the replay never blocks on a dead consumer.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// Broadcast sends payload to every client, dropping any that fail.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("send failed, dropping client", "error", err)
			_ = c.Close()
			delete(h.conns, c)
		}
	}
}
