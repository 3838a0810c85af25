// Package events fans provisioning progress out to display surfaces: the SSE
// endpoint and the terminal panel. A short replay buffer lets clients that
// reconnect catch up from their last seen event ID.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the provisioning controller.
const (
	TypeViewUpdated   = "view.updated"
	TypeStepStarted   = "step.started"
	TypeStepOutput    = "step.output"
	TypeStepCompleted = "step.completed"
	TypeStepFailed    = "step.failed"
	TypeRecordSaved   = "record.saved"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Hub broadcasts events to live subscribers and retains the most recent ones
// for replay. Publishing never blocks; a subscriber that stops draining loses
// events rather than stalling the controller.
type Hub struct {
	lastID atomic.Int64

	mu       sync.Mutex
	replay   []Event // oldest first, bounded by capacity
	capacity int
	subs     map[chan Event]struct{}
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		replay:   make([]Event, 0, capacity),
		capacity: capacity,
		subs:     make(map[chan Event]struct{}),
	}
}

// Publish assigns the next event ID, marshals data, and delivers to the
// replay buffer and every live subscriber. Unmarshalable data degrades to an
// empty object rather than dropping the event.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}
	ev := Event{
		ID:   h.lastID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.replay) == h.capacity {
		copy(h.replay, h.replay[1:])
		h.replay = h.replay[:h.capacity-1]
	}
	h.replay = append(h.replay, ev)
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a live feed. The returned cancel func is safe to call
// more than once and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 128)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, live := h.subs[ch]; live {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// SnapshotSince returns retained events with ID > lastID, oldest first. Zero
// means everything still buffered.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := 0
	for i < len(h.replay) && h.replay[i].ID <= lastID {
		i++
	}
	out := make([]Event, len(h.replay)-i)
	copy(out, h.replay[i:])
	return out
}
