package channel

import (
	"sync"
	"sync/atomic"
)

// Hub is an explicitly constructed inbound message event. Host adapters
// call Dispatch for every message the page receives; every subscriber is
// invoked synchronously in subscription order.
type Hub struct {
	mu   sync.RWMutex
	subs []*hubSub
}

type hubSub struct {
	fn     func(Event)
	closed atomic.Bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (h *Hub) Subscribe(fn func(Event)) func() {
	sub := &hubSub{fn: fn}
	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()
	return func() { h.remove(sub) }
}

// Dispatch delivers ev to every current subscriber.
func (h *Hub) Dispatch(ev Event) {
	h.mu.RLock()
	subs := make([]*hubSub, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		sub.fn(ev)
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(target *hubSub) {
	if target.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub == target {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}
