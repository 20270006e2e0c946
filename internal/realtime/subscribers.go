package realtime

import (
	"encoding/json"
	"sync"
)

// Handler receives the payload of one pushed event.
type Handler func(data json.RawMessage)

// registry routes pushed events to subscribed handlers by event name.
// Dispatch happens on the channel's read goroutine, so handlers for a
// given connection run one at a time, in arrival order.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]map[int]Handler
	nextID   int
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]map[int]Handler)}
}

// subscribe adds a handler for the named event and returns a cancel
// func that removes it. The cancel func is safe to call more than once.
func (r *registry) subscribe(event string, handler Handler) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.handlers[event] == nil {
		r.handlers[event] = make(map[int]Handler)
	}
	r.handlers[event][id] = handler
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.handlers[event], id)
			r.mu.Unlock()
		})
	}
}

// dispatch calls every handler subscribed to the event.
func (r *registry) dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	snapshot := make([]Handler, 0, len(r.handlers[event]))
	for _, handler := range r.handlers[event] {
		snapshot = append(snapshot, handler)
	}
	r.mu.RUnlock()

	for _, handler := range snapshot {
		handler(data)
	}
}

// clear removes every subscription.
func (r *registry) clear() {
	r.mu.Lock()
	r.handlers = make(map[string]map[int]Handler)
	r.mu.Unlock()
}
