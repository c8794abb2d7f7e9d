package api

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans published position batches out to websocket subscribers. Slow
// clients lose batches rather than stall the publisher's tap: each client
// has a small buffered channel and Broadcast never blocks on it.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

const clientBuffer = 8

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

// Broadcast copies payload once and offers it to every subscriber.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)

	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// client not keeping up, drop this batch for it
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
}

// Clients reports the current subscriber count.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
