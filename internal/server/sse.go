package server

import (
	"sync"

	"github.com/google/uuid"
)

// ChangeEvent is what SSE subscribers receive when the watcher reports a
// settled filesystem change.
type ChangeEvent struct {
	Type      string `json:"type"` // "history", "session", or "project"
	SessionID string `json:"sessionId,omitempty"`
	Project   string `json:"project,omitempty"` // encoded project directory name
}

// Hub fans change events out to SSE subscribers. Delivery is best-effort: a
// subscriber that stops draining its channel misses events rather than
// blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan ChangeEvent
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan ChangeEvent)}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// caller must Unsubscribe with the id when done.
func (h *Hub) Subscribe() (string, <-chan ChangeEvent) {
	id := uuid.New().String()
	ch := make(chan ChangeEvent, 16)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every current subscriber without blocking.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount is used by tests and the status endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
