package roster

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nidhogg/herd/internal/geom"
)

// Handle is the opaque identity the roster hands out for an agent.
type Handle string

// NewHandle issues a fresh handle. The handle is not registered until Join.
func NewHandle() Handle { return Handle(uuid.New().String()) }

// Entry is the published view of an active agent.
type Entry struct {
	Handle   Handle     `json:"id"`
	Name     string     `json:"name"`
	Position geom.Point `json:"position"`
}

// Roster is the shared registry of active agents. Every agent writes only its
// own entry; any agent may read all of them.
type Roster struct {
	entries map[Handle]*Entry
	order   []Handle // join order, for deterministic lookups
	mu      sync.RWMutex
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{entries: make(map[Handle]*Entry)}
}

// Join registers an agent. Joining an existing handle updates its name and position.
func (r *Roster) Join(h Handle, name string, pos geom.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok {
		e.Name = name
		e.Position = pos
		return
	}
	r.entries[h] = &Entry{Handle: h, Name: name, Position: pos}
	r.order = append(r.order, h)
}

// Leave removes an agent, reporting whether it was present.
func (r *Roster) Leave(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[h]; !ok {
		return false
	}
	delete(r.entries, h)
	for i, o := range r.order {
		if o == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Publish updates the position of a registered agent. Unknown handles are ignored.
func (r *Roster) Publish(h Handle, pos geom.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok {
		e.Position = pos
	}
}

// Position returns the published position of h.
func (r *Roster) Position(h Handle) (geom.Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[h]
	if !ok {
		return geom.Point{}, false
	}
	return e.Position, true
}

// LookupByName finds the earliest-joined agent other than self whose name
// matches case-insensitively.
func (r *Roster) LookupByName(self Handle, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.order {
		if h == self {
			continue
		}
		e := r.entries[h]
		if strings.EqualFold(e.Name, name) {
			return *e, true
		}
	}
	return Entry{}, false
}

// Active lists every agent other than self in join order.
func (r *Roster) Active(self Handle) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, h := range r.order {
		if h == self {
			continue
		}
		out = append(out, *r.entries[h])
	}
	return out
}

// Len is the number of active agents.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
