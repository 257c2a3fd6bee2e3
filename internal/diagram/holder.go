package diagram

import "sync"

// Holder owns the diagram state for one session. It is mutated exclusively
// by the generate-diagram tool callback and read by display code; the whole
// State is replaced in one step so readers never observe a new source paired
// with an old kind.
type Holder struct {
	mu       sync.RWMutex
	state    State
	onChange []func(State)
}

// NewHolder returns a holder with no source and the default mermaid kind.
// Kind is defined even before the first generation.
func NewHolder() *Holder {
	return &Holder{state: State{Kind: KindMermaid}}
}

// Get returns the current state.
func (h *Holder) Get() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// HasDiagram reports whether a diagram has been generated.
func (h *Holder) HasDiagram() bool {
	return !h.Get().Empty()
}

// Set replaces the state wholesale and then invokes the registered change
// callbacks, in registration order, outside the lock.
func (h *Holder) Set(st State) {
	h.mu.Lock()
	h.state = st
	callbacks := make([]func(State), len(h.onChange))
	copy(callbacks, h.onChange)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(st)
	}
}

// OnChange registers a callback invoked after each state replacement.
func (h *Holder) OnChange(fn func(State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}
