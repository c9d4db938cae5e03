package gateway

import (
	"context"
	"time"

	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
)

// Adapter delivers presentation events to one kind of renderer. Publish must
// not block on the network: adapters queue or drop.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, ev *Event) error
	OnInput(handler InputHandler)
	Close() error
}

// InputHandler processes inbound renderer messages from any adapter.
type InputHandler func(ctx context.Context, in *Input) error

// EventType categorizes presentation events.
type EventType string

const (
	EventCaption     EventType = "caption"
	EventCaptionMove EventType = "caption_move"
	EventCaptionHide EventType = "caption_hide"
	EventAudio       EventType = "audio"
	EventBehavior    EventType = "behavior"
	EventFrame       EventType = "frame"
)

// Event is a normalized presentation event.
type Event struct {
	ID         string           `json:"id"`
	Type       EventType        `json:"type"`
	AgentID    roster.Handle    `json:"agent_id,omitempty"`
	Name       string           `json:"name,omitempty"`
	Text       string           `json:"text,omitempty"`
	Anchor     *geom.Point      `json:"anchor,omitempty"`
	DurationMS int64            `json:"duration_ms,omitempty"`
	Audio      string           `json:"audio,omitempty"`
	Agent      *agent.Snapshot  `json:"agent,omitempty"`
	Agents     []agent.Snapshot `json:"agents,omitempty"`
	Time       time.Time        `json:"time"`
}

// InputType distinguishes the inbound message kinds.
type InputType string

const (
	InputAgent  InputType = "input"
	InputScreen InputType = "screen"
)

// Input is a message sent by a renderer: a pointer or menu event for one
// agent, or the size of the usable screen area.
type Input struct {
	Type    InputType     `json:"type"`
	AgentID roster.Handle `json:"agent_id,omitempty"`
	Event   string        `json:"event,omitempty"`
	On      bool          `json:"on,omitempty"`
	X       int           `json:"x,omitempty"`
	Y       int           `json:"y,omitempty"`
	Width   int           `json:"width,omitempty"`
	Height  int           `json:"height,omitempty"`
	Source  string        `json:"-"`
}

// AgentEvent converts an agent input to the event the agent understands.
func (in *Input) AgentEvent() (agent.Event, error) {
	kind, err := agent.ParseKind(in.Event)
	if err != nil {
		return agent.Event{}, err
	}
	return agent.Event{Kind: kind, On: in.On, Point: geom.Point{X: in.X, Y: in.Y}}, nil
}
