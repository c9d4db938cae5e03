package agent

import (
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
)

// Snapshot is a point-in-time view of an agent.
type Snapshot struct {
	ID           roster.Handle           `json:"id"`
	Name         string                  `json:"name"`
	Behavior     string                  `json:"behavior"`
	Previous     string                  `json:"previous,omitempty"`
	Movement     behavior.Movement       `json:"movement"`
	State        behavior.TransitionType `json:"state"`
	Position     geom.Point              `json:"position"`
	Origin       geom.Point              `json:"origin"`
	Destination  *geom.Point             `json:"destination,omitempty"`
	FollowTarget string                  `json:"follow_target,omitempty"`
	Dragging     bool                    `json:"dragging"`
	Sleeping     bool                    `json:"sleeping"`
	PointerOver  bool                    `json:"pointer_over"`
	Started      time.Time               `json:"started"`
	DurationMS   int64                   `json:"duration_ms"`
	Caption      string                  `json:"caption,omitempty"`
	Removed      bool                    `json:"removed,omitempty"`
}

// Snapshot returns the current view of the agent.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Agent) snapshot() Snapshot {
	s := Snapshot{
		ID:           a.id,
		Name:         a.catalog.Name(),
		Behavior:     a.current.Name,
		Movement:     a.current.Movement,
		State:        a.state,
		Position:     a.position,
		Origin:       a.origin,
		FollowTarget: a.followName,
		Dragging:     a.dragging,
		Sleeping:     a.sleeping,
		PointerOver:  a.pointerOver,
		Started:      a.started,
		DurationMS:   a.duration.Milliseconds(),
		Removed:      a.removed,
	}
	if a.previous != nil {
		s.Previous = a.previous.Name
	}
	if a.hasDestination {
		d := a.destination
		s.Destination = &d
	}
	if a.speech.visible {
		s.Caption = a.speech.line.Text
	}
	return s
}
