package rules

import "sync"

// DeltaHistory is a bounded, per-scope window of observed relative deltas.
// It is owned by the caller and injected into the registry, so evaluation
// state never hides in package globals and tests can start from a clean
// window.
type DeltaHistory struct {
	mu       sync.Mutex
	capacity int
	windows  map[string][]float64
}

// NewDeltaHistory creates a history keeping at most capacity samples per
// scope. Capacity values below 1 default to 50.
func NewDeltaHistory(capacity int) *DeltaHistory {
	if capacity < 1 {
		capacity = 50
	}
	return &DeltaHistory{capacity: capacity, windows: make(map[string][]float64)}
}

// Append records a sample for scope and returns a copy of the window
// including it, oldest first.
func (h *DeltaHistory) Append(scope string, sample float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := append(h.windows[scope], sample)
	if len(w) > h.capacity {
		w = w[len(w)-h.capacity:]
	}
	h.windows[scope] = w
	return append([]float64(nil), w...)
}

// Len reports the current window size for scope.
func (h *DeltaHistory) Len(scope string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.windows[scope])
}
