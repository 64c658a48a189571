package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/ledger"
)

// Event is one run lifecycle notification delivered to event subscribers.
type Event struct {
	RunID     string        `json:"run_id"`
	Status    ledger.Status `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// statusEvent builds the event for a recorded status transition.
func statusEvent(runID string, status ledger.Status) Event {
	return Event{RunID: runID, Status: status, Timestamp: time.Now().UTC()}
}

// subscriberBuffer is each subscriber's channel capacity. A subscriber that
// falls this far behind starts losing events instead of blocking publishers.
const subscriberBuffer = 16

// Hub fans run lifecycle events out to websocket subscribers. Subscriptions
// are keyed by run id; publishing never blocks.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]bool
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]bool),
		logger: logger,
	}
}

// Subscribe registers for events about one run. The returned cancel func
// releases the subscription and closes the channel; calling it more than
// once is safe. Subscribing to a closed hub yields an already-closed channel.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan Event]bool)
	}
	h.subs[runID][ch] = true
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.closed {
				// Close already closed every channel.
				return
			}
			if set, ok := h.subs[runID]; ok {
				if set[ch] {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, runID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its run. Slow subscribers
// are skipped rather than waited on.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for ch := range h.subs[evt.RunID] {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("event subscriber full, dropping event",
				zap.String("run_id", evt.RunID),
				zap.String("status", string(evt.Status)))
		}
	}
}

// SubscriberCount returns the number of subscribers for one run.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}

// Close closes every subscriber channel and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for ch := range set {
			close(ch)
		}
	}
	h.subs = make(map[string]map[chan Event]bool)
}
