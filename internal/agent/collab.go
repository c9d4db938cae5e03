package agent

import (
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
)

// Random is a uniform random source.
type Random interface {
	// Int draws from [min, max], both inclusive.
	Int(min, max int64) int64
	// Float draws from [min, max).
	Float(min, max float64) float64
}

// Roster is the part of the shared registry an agent reads and publishes to.
type Roster interface {
	LookupByName(self roster.Handle, name string) (roster.Entry, bool)
	Position(h roster.Handle) (geom.Point, bool)
	Publish(h roster.Handle, pos geom.Point)
}

// Body is the view of an agent handed to its executor. It is only valid for
// the duration of the executor call it was passed to.
type Body interface {
	ID() roster.Handle
	Behavior() *behavior.Definition
	State() behavior.TransitionType
	Origin() geom.Point
	Position() geom.Point
	Destination() (geom.Point, bool)
	Area() geom.Size
	// Move places the sprite's top-left corner; the logical position follows
	// the current behavior's anchor.
	Move(origin geom.Point)
}

// Executor runs the motion and animation of the current behavior.
type Executor interface {
	Init(b Body)
	Deinit(b Body)
	Update(b Body, now time.Time)
}

// Caption is a speech bubble shown above an agent.
type Caption struct {
	AgentID  roster.Handle `json:"agent_id"`
	Name     string        `json:"name"`
	Text     string        `json:"text"`
	Anchor   geom.Point    `json:"anchor"`
	Duration time.Duration `json:"duration"`
}

// Presenter displays what agents say and do.
type Presenter interface {
	ShowCaption(c Caption)
	MoveCaption(id roster.Handle, anchor geom.Point)
	HideCaption(id roster.Handle)
	PlayAudio(id roster.Handle, line *behavior.SpeechLine)
	BehaviorChanged(s Snapshot)
}

// Settings are the user toggles consulted during transitions.
type Settings struct {
	SpeechEnabled  bool
	SpeechDuration time.Duration
	SoundEnabled   bool
}

// NopExecutor does nothing.
type NopExecutor struct{}

func (NopExecutor) Init(Body)              {}
func (NopExecutor) Deinit(Body)            {}
func (NopExecutor) Update(Body, time.Time) {}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) ShowCaption(Caption)                           {}
func (NopPresenter) MoveCaption(roster.Handle, geom.Point)         {}
func (NopPresenter) HideCaption(roster.Handle)                     {}
func (NopPresenter) PlayAudio(roster.Handle, *behavior.SpeechLine) {}
func (NopPresenter) BehaviorChanged(Snapshot)                      {}
