package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/herd/internal/geom"
)

// ErrUnknownEvent is returned by ParseKind and Dispatch for unsupported kinds.
var ErrUnknownEvent = errors.New("unknown event")

// Kind is one of the discrete input events an agent reacts to.
type Kind string

const (
	KindPress   Kind = "press"   // primary pointer pressed, starts a drag
	KindRelease Kind = "release" // pointer released, ends a drag
	KindEnter   Kind = "enter"   // pointer entered the sprite
	KindLeave   Kind = "leave"   // pointer left the sprite
	KindSleep   Kind = "sleep"   // sleep toggle, see Event.On
	KindMove    Kind = "move"    // pointer moved while dragging
	KindRemove  Kind = "remove"
)

var kinds = []Kind{KindPress, KindRelease, KindEnter, KindLeave, KindSleep, KindMove, KindRemove}

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// Event is an input message delivered to an agent.
type Event struct {
	Kind  Kind       `json:"type"`
	On    bool       `json:"on,omitempty"`    // KindSleep
	Point geom.Point `json:"point,omitempty"` // KindMove
}

// Sleep builds a sleep toggle event.
func Sleep(on bool) Event { return Event{Kind: KindSleep, On: on} }

// Dispatch applies an input event. Overrides never touch the running
// schedule: started time, duration and destination survive them intact.
func (a *Agent) Dispatch(ev Event, now time.Time, s Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ErrRemoved
	}

	switch ev.Kind {
	case KindPress:
		a.dragging = true
		a.changeBehaviorTo(a.catalog.Dragged())
	case KindRelease:
		a.dragging = false
		switch {
		case a.pointerOver:
			a.changeBehaviorTo(a.catalog.MouseOver())
		case a.sleeping:
			a.changeBehaviorTo(a.catalog.Sleep())
		case len(a.catalog.Dragged()) > 0:
			a.changeBehavior(now, s)
		}
	case KindEnter:
		a.pointerOver = true
		a.changeBehaviorTo(a.catalog.MouseOver())
	case KindLeave:
		a.pointerOver = false
		switch {
		case a.sleeping:
			a.changeBehaviorTo(a.catalog.Sleep())
		case len(a.catalog.MouseOver()) > 0:
			a.changeBehavior(now, s)
		}
	case KindSleep:
		a.sleeping = ev.On
		if ev.On {
			a.changeBehaviorTo(a.catalog.Sleep())
		} else {
			a.changeBehavior(now, s)
		}
	case KindMove:
		if a.dragging {
			a.position = ev.Point
			a.origin = ev.Point.Sub(a.current.Anchor)
		}
	case KindRemove:
		a.removed = true
		a.hideCaption()
		a.exec.Deinit(body{a})
		a.logger.Info("agent removed")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
	return nil
}
