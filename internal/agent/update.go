package agent

import (
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"go.uber.org/zap"
)

// Update advances the agent by one tick.
func (a *Agent) Update(now time.Time, s Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ErrRemoved
	}

	if a.speech.visible {
		if !now.Before(a.speech.started.Add(s.SpeechDuration)) {
			a.hideCaption()
		} else {
			a.presenter.MoveCaption(a.id, a.captionAnchor())
		}
	}

	if !a.overridden() {
		if !now.Before(a.started.Add(a.duration)) {
			a.changeBehavior(now, s)
		}
		if a.following() && !a.refreshFollow() {
			a.logger.Info("follow target left", zap.String("target", a.followName))
			a.changeBehavior(now, s)
		}
		a.exec.Update(body{a}, now)
	}

	a.roster.Publish(a.id, a.position)
	return nil
}

// following reports whether the running activation tracks another agent.
// An override may have replaced the behavior without a full cycle, so the
// current behavior must still be a following one.
func (a *Agent) following() bool {
	return a.state == behavior.TypeFollowing && a.current.Type == behavior.TypeFollowing
}

// refreshFollow moves the destination along with the followed agent, keeping
// the offset captured when the target was resolved.
func (a *Agent) refreshFollow() bool {
	pos, ok := a.roster.Position(a.followHandle)
	if !ok {
		return false
	}
	a.destination = pos.Add(a.followOffset)
	a.hasDestination = true
	return true
}
