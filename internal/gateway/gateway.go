// Package gateway fans presentation events out to renderer adapters and
// routes renderer input back to the herd.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"go.uber.org/zap"
)

// Gateway manages renderer adapters. It implements agent.Presenter and
// world.FrameSink.
type Gateway struct {
	adapters map[string]Adapter
	handler  InputHandler
	history  *History
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway keeping the last historySize events.
func NewGateway(historySize int, logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		history:  NewHistory(historySize),
		logger:   logger,
	}
}

// SetHandler sets the callback for all inbound renderer messages.
func (g *Gateway) SetHandler(h InputHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// Register adds an adapter and wires its input handler.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := adapter.Name()
	g.adapters[name] = adapter
	adapter.OnInput(g.dispatch)
	g.logger.Info("registered gateway adapter", zap.String("adapter", name))
}

func (g *Gateway) dispatch(ctx context.Context, in *Input) error {
	g.mu.RLock()
	h := g.handler
	g.mu.RUnlock()
	if h == nil {
		return fmt.Errorf("no input handler")
	}
	return h(ctx, in)
}

// Publish stamps an event and sends it to every adapter. Frames are not
// kept in the history.
func (g *Gateway) Publish(ctx context.Context, ev *Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Type != EventFrame {
		g.history.Add(ev)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for name, adapter := range g.adapters {
		if err := adapter.Publish(ctx, ev); err != nil {
			g.logger.Warn("publish failed",
				zap.String("adapter", name),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
	}
}

// ShowCaption implements agent.Presenter.
func (g *Gateway) ShowCaption(c agent.Caption) {
	anchor := c.Anchor
	g.Publish(context.Background(), &Event{
		Type:       EventCaption,
		AgentID:    c.AgentID,
		Name:       c.Name,
		Text:       c.Text,
		Anchor:     &anchor,
		DurationMS: c.Duration.Milliseconds(),
	})
}

// MoveCaption implements agent.Presenter.
func (g *Gateway) MoveCaption(id roster.Handle, anchor geom.Point) {
	g.Publish(context.Background(), &Event{Type: EventCaptionMove, AgentID: id, Anchor: &anchor})
}

// HideCaption implements agent.Presenter.
func (g *Gateway) HideCaption(id roster.Handle) {
	g.Publish(context.Background(), &Event{Type: EventCaptionHide, AgentID: id})
}

// PlayAudio implements agent.Presenter.
func (g *Gateway) PlayAudio(id roster.Handle, line *behavior.SpeechLine) {
	g.Publish(context.Background(), &Event{
		Type:    EventAudio,
		AgentID: id,
		Name:    line.Name,
		Text:    line.Text,
		Audio:   line.Audio,
	})
}

// BehaviorChanged implements agent.Presenter.
func (g *Gateway) BehaviorChanged(s agent.Snapshot) {
	g.Publish(context.Background(), &Event{
		Type:    EventBehavior,
		AgentID: s.ID,
		Name:    s.Name,
		Text:    s.Behavior,
		Agent:   &s,
	})
}

// Frame implements world.FrameSink.
func (g *Gateway) Frame(worldTime time.Time, agents []agent.Snapshot) {
	g.Publish(context.Background(), &Event{Type: EventFrame, Agents: agents, Time: worldTime})
}

// History returns up to limit recent events, oldest first.
func (g *Gateway) History(limit int) []*Event { return g.history.Recent(limit) }

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("adapter", name), zap.Error(err))
		}
	}
	return nil
}

// Adapters returns the sorted names of registered adapters.
func (g *Gateway) Adapters() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for name := range g.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
