package observer

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Hub fans encoded messages out to connected clients. A client whose queue
// is full misses the message rather than stalling the tick loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan []byte
	nextID  atomic.Uint64
	dropped atomic.Uint64
	queue   int
}

func NewHub(queue int) *Hub {
	if queue < 1 {
		queue = 8
	}
	return &Hub{clients: make(map[string]chan []byte), queue: queue}
}

func (h *Hub) Join() (string, <-chan []byte) {
	id := fmt.Sprintf("O%d", h.nextID.Add(1))
	ch := make(chan []byte, h.queue)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) Leave(id string) {
	h.mu.Lock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts messages skipped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Broadcast(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}
