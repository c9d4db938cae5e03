// Package motion is the default behavior executor: it walks agents around
// the usable area one step per tick.
package motion

import (
	"sync"
	"time"

	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"go.uber.org/zap"
)

// Walker implements agent.Executor.
//
// Following and moving-to-point behaviors step the logical position toward
// the destination by at most Speed pixels per axis each tick. Normal
// behaviors with a positive Speed walk horizontally and turn around at the
// edges of the usable area. Everything else stays put.
type Walker struct {
	heading map[roster.Handle]int // +1 right, -1 left
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewWalker creates a walker.
func NewWalker(logger *zap.Logger) *Walker {
	return &Walker{heading: make(map[roster.Handle]int), logger: logger}
}

// Init picks the walking direction for a new behavior: toward the wider
// side of the area.
func (w *Walker) Init(b agent.Body) {
	dir := 1
	if b.Position().X > b.Area().Width/2 {
		dir = -1
	}
	w.mu.Lock()
	w.heading[b.ID()] = dir
	w.mu.Unlock()
}

func (w *Walker) Deinit(b agent.Body) {
	w.mu.Lock()
	delete(w.heading, b.ID())
	w.mu.Unlock()
}

// Update moves the body one tick.
func (w *Walker) Update(b agent.Body, _ time.Time) {
	def := b.Behavior()
	if def == nil || def.Speed <= 0 {
		return
	}
	switch b.State() {
	case behavior.TypeFollowing, behavior.TypeMovingToPoint:
		dest, ok := b.Destination()
		if !ok {
			return
		}
		pos := b.Position()
		if pos == dest {
			return
		}
		next := Step(pos, dest, def.Speed)
		b.Move(next.Sub(def.Anchor))
		if next == dest {
			w.logger.Debug("destination reached",
				zap.String("agent", string(b.ID())),
				zap.String("behavior", def.Name))
		}
	default:
		w.walk(b, def)
	}
}

func (w *Walker) walk(b agent.Body, def *behavior.Definition) {
	w.mu.Lock()
	dir, ok := w.heading[b.ID()]
	if !ok {
		dir = 1
	}
	origin := b.Origin()
	area := b.Area()
	width := 2 * def.Anchor.X // sprite width approximated from its center
	next := origin.X + dir*def.Speed
	switch {
	case next < 0:
		next, dir = 0, 1
	case next+width > area.Width:
		next, dir = max(area.Width-width, 0), -1
	}
	w.heading[b.ID()] = dir
	w.mu.Unlock()

	b.Move(geom.Point{X: next, Y: origin.Y})
}

// Step advances from toward to by at most speed on each axis.
func Step(from, to geom.Point, speed int) geom.Point {
	return geom.Point{
		X: from.X + clamp(to.X-from.X, speed),
		Y: from.Y + clamp(to.Y-from.Y, speed),
	}
}

func clamp(d, limit int) int {
	if d > limit {
		return limit
	}
	if d < -limit {
		return -limit
	}
	return d
}
