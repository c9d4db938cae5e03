package agent

import (
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"go.uber.org/zap"
)

// changeBehavior runs a full-cycle transition. Callers hold a.mu.
func (a *Agent) changeBehavior(now time.Time, s Settings) {
	old := a.current
	if old != nil {
		a.exec.Deinit(body{a})
	}
	a.followName = ""
	a.followHandle = ""
	a.followOffset = geom.Point{}

	next := a.nextBehavior(old)
	a.previous = old
	a.current = next

	a.state = next.Type
	a.destination = geom.Point{}
	a.hasDestination = false
	switch next.Type {
	case behavior.TypeFollowing:
		a.resolveFollow(next)
	case behavior.TypeMovingToPoint:
		area := a.screen.UsableArea()
		a.destination = geom.Point{
			X: next.Coordinate.X * area.Width / 100,
			Y: next.Coordinate.Y * area.Height / 100,
		}
		a.hasDestination = true
	}

	a.duration = a.rollDuration(next)

	if old != nil {
		a.position = a.origin.Add(old.Anchor)
		a.origin = a.position.Sub(next.Anchor)
	} else {
		a.position = a.origin.Add(next.Anchor)
	}

	a.started = now
	a.exec.Init(body{a})

	a.speak(old, next, now, s)

	a.logger.Debug("behavior changed",
		zap.String("behavior", next.Name),
		zap.String("state", string(a.state)),
		zap.Duration("duration", a.duration))
	a.presenter.BehaviorChanged(a.snapshot())
}

// nextBehavior follows a resolvable link or spins the roulette wheel.
func (a *Agent) nextBehavior(old *behavior.Definition) *behavior.Definition {
	if old != nil && old.Linked != "" {
		if d, ok := a.catalog.Behavior(old.Linked); ok {
			return d
		}
		a.logger.Warn("linked behavior not found",
			zap.String("behavior", old.Name),
			zap.String("linked", old.Linked))
	}
	return a.catalog.SelectWeighted(a.rng.Float(0, a.catalog.TotalWeight()))
}

// resolveFollow sets the destination from the follow target, or demotes the
// activation to a normal one when the target is not on the roster.
func (a *Agent) resolveFollow(d *behavior.Definition) {
	e, ok := a.roster.LookupByName(a.id, d.FollowTarget)
	if !ok {
		a.logger.Warn("follow target not found",
			zap.String("behavior", d.Name),
			zap.String("target", d.FollowTarget))
		a.state = behavior.TypeNormal
		return
	}
	a.followName = e.Name
	a.followHandle = e.Handle
	a.followOffset = d.Coordinate
	a.destination = e.Position.Add(d.Coordinate)
	a.hasDestination = true
}

func (a *Agent) rollDuration(d *behavior.Definition) time.Duration {
	lo, hi := d.DurationBounds()
	if lo == hi {
		return lo
	}
	ms := a.rng.Int(lo.Milliseconds(), hi.Milliseconds())
	return time.Duration(ms) * time.Millisecond
}

// speak picks the line announced by a full-cycle transition.
func (a *Agent) speak(old, next *behavior.Definition, now time.Time, s Settings) {
	if !s.SpeechEnabled || !a.catalog.HasLines() {
		return
	}
	continuation := old != nil && old.Linked == next.Name

	var line *behavior.SpeechLine
	switch {
	case next.StartLine != "":
		l, ok := a.catalog.Line(next.StartLine)
		if !ok {
			a.logger.Warn("starting line not found",
				zap.String("behavior", next.Name),
				zap.String("line", next.StartLine))
			return
		}
		line = l
	case old != nil && old.EndLine != "" && !continuation:
		l, ok := a.catalog.Line(old.EndLine)
		if !ok {
			a.logger.Warn("ending line not found",
				zap.String("behavior", old.Name),
				zap.String("line", old.EndLine))
			return
		}
		line = l
	case !continuation:
		lines := a.catalog.RandomLines()
		if len(lines) == 0 {
			return
		}
		line = lines[a.rng.Int(0, int64(len(lines)-1))]
	default:
		return
	}
	a.say(line, now, s)
}

func (a *Agent) say(line *behavior.SpeechLine, now time.Time, s Settings) {
	a.speech = speech{line: line, started: now, visible: true}
	a.presenter.ShowCaption(Caption{
		AgentID:  a.id,
		Name:     a.catalog.Name(),
		Text:     line.Text,
		Anchor:   a.captionAnchor(),
		Duration: s.SpeechDuration,
	})
	if s.SoundEnabled && line.Audio != "" {
		a.presenter.PlayAudio(a.id, line)
	}
}

// captionAnchor is the horizontal center of the agent at the top of its sprite.
func (a *Agent) captionAnchor() geom.Point {
	return geom.Point{X: a.position.X, Y: a.origin.Y}
}

func (a *Agent) hideCaption() {
	if !a.speech.visible {
		return
	}
	a.speech.visible = false
	a.presenter.HideCaption(a.id)
}

// changeBehaviorTo switches to a random member of pool without touching the
// schedule. An empty pool leaves the agent unchanged.
func (a *Agent) changeBehaviorTo(pool []*behavior.Definition) bool {
	if len(pool) == 0 {
		return false
	}
	a.exec.Deinit(body{a})
	next := pool[a.rng.Int(0, int64(len(pool)-1))]
	a.previous = a.current
	a.current = next
	a.origin = a.position.Sub(next.Anchor)
	a.exec.Init(body{a})

	a.logger.Debug("behavior overridden", zap.String("behavior", next.Name))
	a.presenter.BehaviorChanged(a.snapshot())
	return true
}

func (a *Agent) overridden() bool {
	return a.dragging || a.sleeping || a.pointerOver
}
