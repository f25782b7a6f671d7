// Package watch is the client-facing surface of payment reconciliation: a
// push hub fed by the engine and a watcher that merges push, polling and the
// local countdown into a single exactly-once status stream.
package watch

import (
	"sync"

	"github.com/petinel/payments-service/internal/domain"
)

// Update is one status observation for an attempt.
type Update struct {
	AttemptID string
	Status    domain.AttemptStatus
}

// Hub fans terminal transitions out to live subscribers, keyed by attempt.
// Publish never blocks: a slow subscriber misses the push and picks the state
// up on its next poll, which reads the same authoritative record.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan Update]struct{}),
	}
}

// Subscribe registers interest in one attempt. The returned cancel func must
// be called when the observer goes away.
func (h *Hub) Subscribe(attemptID string) (<-chan Update, func()) {
	ch := make(chan Update, 4)

	h.mu.Lock()
	if h.subs[attemptID] == nil {
		h.subs[attemptID] = make(map[chan Update]struct{})
	}
	h.subs[attemptID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[attemptID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, attemptID)
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

func (h *Hub) Publish(attemptID string, status domain.AttemptStatus) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[attemptID] {
		select {
		case ch <- Update{AttemptID: attemptID, Status: status}:
		default:
		}
	}
}

// SubscriberCount reports how many observers an attempt currently has.
func (h *Hub) SubscriberCount(attemptID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[attemptID])
}
