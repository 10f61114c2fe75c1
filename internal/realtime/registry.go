package realtime

import (
	"encoding/json"
	"sync"
)

// Handler consumes the raw payload of one realtime event. Payloads are
// opaque to the transport; listeners decode what they need.
type Handler func(data json.RawMessage)

// registry holds per-event listener sets. Handlers are snapshotted before
// delivery, so a handler that subscribes or unsubscribes during dispatch
// never mutates the slice being iterated.
type registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]map[uint64]Handler)}
}

// add registers h for event and returns an unsubscribe func. Unsubscribing
// twice is harmless.
func (r *registry) add(event string, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if r.subs[event] == nil {
		r.subs[event] = make(map[uint64]Handler)
	}
	r.subs[event][id] = h

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.subs[event]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.subs, event)
			}
		}
	}
}

// snapshot returns a copy of the handlers currently registered for event.
func (r *registry) snapshot(event string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.subs[event]
	if len(set) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

// clear drops every listener. Called on disconnect and on reconnect
// exhaustion.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[string]map[uint64]Handler)
}

// size reports the total listener count across all events.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.subs {
		n += len(set)
	}
	return n
}
