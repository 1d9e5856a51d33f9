// Package connectivity reports whether the backend is reachable and publishes
// transitions to subscribers.
package connectivity

import (
	"sort"
	"sync"
)

// hub fans a connectivity transition out to subscribers.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(online bool)
}

// Subscribe registers fn for transitions. The returned function unsubscribes.
func (h *hub) Subscribe(fn func(online bool)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(bool))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// publish calls subscribers in subscription order, outside the lock.
func (h *hub) publish(online bool) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Manual is a connectivity source switched by hand.
type Manual struct {
	hub
	mu     sync.Mutex
	online bool
}

// NewManual creates a Manual source with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Online reports the current state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set changes the state and notifies subscribers when it differs.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		m.publish(online)
	}
}
