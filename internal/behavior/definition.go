package behavior

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nidhogg/herd/internal/geom"
)

// Movement classifies which pool a behavior belongs to besides the random one.
type Movement string

const (
	MovementNormal    Movement = "normal"
	MovementSleep     Movement = "sleep"
	MovementDragged   Movement = "dragged"
	MovementMouseOver Movement = "mouseover"
)

// TransitionType describes how a behavior computes its destination.
type TransitionType string

const (
	TypeNormal        TransitionType = "normal"
	TypeFollowing     TransitionType = "following"
	TypeMovingToPoint TransitionType = "moving_to_point"
)

// Definition is an immutable behavior record of a species.
type Definition struct {
	Name        string         `json:"name" yaml:"name"`
	Weight      float64        `json:"weight" yaml:"weight"`
	DurationMin float64        `json:"duration_min" yaml:"duration_min"` // seconds
	DurationMax float64        `json:"duration_max" yaml:"duration_max"` // seconds
	Movement    Movement       `json:"movement,omitempty" yaml:"movement,omitempty"`
	Type        TransitionType `json:"type,omitempty" yaml:"type,omitempty"`
	Linked      string         `json:"linked,omitempty" yaml:"linked,omitempty"`
	Skip        bool           `json:"skip,omitempty" yaml:"skip,omitempty"`
	StartLine   string         `json:"start_line,omitempty" yaml:"start_line,omitempty"`
	EndLine     string         `json:"end_line,omitempty" yaml:"end_line,omitempty"`
	// FollowTarget is the roster name of the agent to follow.
	FollowTarget string `json:"follow_target,omitempty" yaml:"follow_target,omitempty"`
	// Anchor is the sprite's center offset from its top-left corner.
	Anchor geom.Point `json:"anchor" yaml:"anchor"`
	// Coordinate is an absolute offset for following behaviors, or a
	// percentage [0,100] of the usable area for moving-to-point behaviors.
	Coordinate geom.Point `json:"coordinate" yaml:"coordinate"`
	Speed      int        `json:"speed,omitempty" yaml:"speed,omitempty"` // pixels per tick
}

// DurationBounds converts the second-based bounds to milliseconds, rounding
// half away from zero.
func (d *Definition) DurationBounds() (min, max time.Duration) {
	lo := int64(math.Round(d.DurationMin * 1000))
	hi := int64(math.Round(d.DurationMax * 1000))
	return time.Duration(lo) * time.Millisecond, time.Duration(hi) * time.Millisecond
}

func (d *Definition) normalize() {
	if d.Movement == "" {
		d.Movement = MovementNormal
	}
	d.Movement = Movement(strings.ToLower(string(d.Movement)))
	if d.Type == "" {
		d.Type = TypeNormal
	}
	d.Type = TransitionType(strings.ToLower(string(d.Type)))
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: behavior without name", ErrInvalidDefinition)
	}
	if d.Weight < 0 || math.IsNaN(d.Weight) {
		return fmt.Errorf("%w: behavior %q has negative weight", ErrInvalidDefinition, d.Name)
	}
	if d.DurationMin > d.DurationMax {
		return fmt.Errorf("%w: behavior %q duration_min %.3f > duration_max %.3f",
			ErrInvalidDefinition, d.Name, d.DurationMin, d.DurationMax)
	}
	if d.DurationMin < 0 {
		return fmt.Errorf("%w: behavior %q has negative duration", ErrInvalidDefinition, d.Name)
	}
	switch d.Movement {
	case MovementNormal, MovementSleep, MovementDragged, MovementMouseOver:
	default:
		return fmt.Errorf("%w: behavior %q has unknown movement %q", ErrInvalidDefinition, d.Name, d.Movement)
	}
	switch d.Type {
	case TypeNormal, TypeFollowing, TypeMovingToPoint:
	default:
		return fmt.Errorf("%w: behavior %q has unknown type %q", ErrInvalidDefinition, d.Name, d.Type)
	}
	return nil
}

// SpeechLine is an immutable line an agent may say.
type SpeechLine struct {
	Name  string `json:"name" yaml:"name"`
	Text  string `json:"text" yaml:"text"`
	Skip  bool   `json:"skip,omitempty" yaml:"skip,omitempty"`
	Audio string `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// Species is the parsed record set a catalog is built from.
type Species struct {
	Name      string       `json:"name" yaml:"name"`
	Behaviors []Definition `json:"behaviors" yaml:"behaviors"`
	Lines     []SpeechLine `json:"lines,omitempty" yaml:"lines,omitempty"`
}
