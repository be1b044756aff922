package notifyhub

import (
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/nimbusdrive/nimbus-go/types"
)

// Hub holds WebSocket connections and fans queue events out to all of them.
// It implements transfer.Notifier.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

func New() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Register adds a WebSocket connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Unregister removes a WebSocket connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast sends the event as JSON to every registered connection. Write
// failures are ignored; a dead connection unregisters itself in its reader.
func (h *Hub) Broadcast(ev types.QueueEvent) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}
