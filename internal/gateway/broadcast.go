package gateway

import "sync"

// History is a bounded ring of recent events.
type History struct {
	events []*Event
	next   int
	full   bool
	mu     sync.Mutex
}

// NewHistory creates a history keeping at most size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 256
	}
	return &History{events: make([]*Event, size)}
}

// Add records an event, evicting the oldest when full.
func (h *History) Add(ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[h.next] = ev
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit events, oldest first. A non-positive limit
// returns everything kept.
func (h *History) Recent(limit int) []*Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Event, 0, limit)
	start := h.next - limit
	if start < 0 {
		start += len(h.events)
	}
	for i := 0; i < limit; i++ {
		out = append(out, h.events[(start+i)%len(h.events)])
	}
	return out
}
