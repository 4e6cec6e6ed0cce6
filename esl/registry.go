package esl

import (
	"sort"
	"sync"
)

// EventHandler is a callback invoked for each dispatched event.
type EventHandler func(event Event)

// EventHandlers is an ordered list of callbacks for one event name.
type EventHandlers []EventHandler

// Callbacks is implemented by EventHandler and EventHandlers so that
// InitializeFrom accepts either a single callback or a list per event name.
type Callbacks interface {
	handlers() []EventHandler
}

func (h EventHandler) handlers() []EventHandler {
	return []EventHandler{h}
}

func (hs EventHandlers) handlers() []EventHandler {
	return hs
}

// Registry maps event names to ordered callbacks. Unknown names behave as an
// empty list. It is safe for concurrent use; callbacks may register further
// callbacks while being dispatched.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]EventHandler)}
}

// Register appends a callback for the event name. Nil callbacks are ignored.
func (r *Registry) Register(name string, handler EventHandler) {
	if handler == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], handler)
}

// InitializeFrom merges a mapping of event names to callbacks. Single
// callbacks and lists are both appended after any callbacks already
// registered for that name, in list order.
func (r *Registry) InitializeFrom(callbacks map[string]Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, cbs := range callbacks {
		if cbs == nil {
			continue
		}
		for _, h := range cbs.handlers() {
			if h != nil {
				r.handlers[name] = append(r.handlers[name], h)
			}
		}
	}
}

// Lookup returns a copy of the callbacks registered for the event name, in
// registration order. It returns an empty slice for unknown names.
func (r *Registry) Lookup(name string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.handlers[name]
	out := make([]EventHandler, len(hs))
	copy(out, hs)
	return out
}

// Names returns the event names with at least one callback, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name, hs := range r.handlers {
		if len(hs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
