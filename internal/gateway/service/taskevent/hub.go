// Package taskevent broadcasts task lifecycle transitions to observers.
// The hub is purely observational: publishing never blocks the task
// pipeline, and a subscriber that stops draining loses events instead of
// stalling anyone else.
package taskevent

import (
	"sync"
	"time"
)

const (
	PhaseStarted  = "started"
	PhaseFinished = "finished"
)

// subscriberBuffer is the per-subscriber channel depth. A client further
// behind than this starts dropping events.
const subscriberBuffer = 32

// recentCap bounds the replay window served to debug consumers.
const recentCap = 128

// Event is one task lifecycle transition. Outcome and ElapsedMs are set on
// finished events only.
type Event struct {
	TaskID    string    `json:"taskId"`
	Kind      string    `json:"kind"`
	Phase     string    `json:"phase"`
	Outcome   string    `json:"outcome,omitempty"`
	ElapsedMs int64     `json:"elapsedMs,omitempty"`
	At        time.Time `json:"at"`
}

// Hub fans events out to subscribers and keeps a short tail for debugging.
// All methods are safe for concurrent use and on a nil receiver.
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	recent  []Event
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish delivers ev to every subscriber that has room and appends it to
// the recent tail. Never blocks.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	h.recent = append(h.recent, ev)
	if len(h.recent) > recentCap {
		h.recent = h.recent[len(h.recent)-recentCap:]
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a new observer. The returned cancel func must be
// called when the observer goes away; after cancel the channel is closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	if h == nil {
		close(ch)
		return ch, func() {}
	}
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Recent returns a copy of the retained event tail, oldest first.
func (h *Hub) Recent() []Event {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Event(nil), h.recent...)
}

// Dropped reports how many events were discarded on full subscriber buffers.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// SubscriberCount reports the number of attached observers.
func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
