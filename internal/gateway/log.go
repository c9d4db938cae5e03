package gateway

import (
	"context"

	"go.uber.org/zap"
)

// LogAdapter writes presentation events to the log. It is the renderer of
// last resort when nothing else is attached.
type LogAdapter struct {
	logger *zap.Logger
}

// NewLogAdapter creates a log adapter.
func NewLogAdapter(logger *zap.Logger) *LogAdapter {
	return &LogAdapter{logger: logger}
}

func (a *LogAdapter) Name() string         { return "log" }
func (a *LogAdapter) OnInput(InputHandler) {}
func (a *LogAdapter) Close() error         { return nil }

// Publish logs captions and audio at info level and behavior changes at
// debug level. Frames are skipped.
func (a *LogAdapter) Publish(_ context.Context, ev *Event) error {
	switch ev.Type {
	case EventCaption:
		a.logger.Info("says",
			zap.String("agent", string(ev.AgentID)),
			zap.String("name", ev.Name),
			zap.String("text", ev.Text))
	case EventAudio:
		a.logger.Info("plays",
			zap.String("agent", string(ev.AgentID)),
			zap.String("audio", ev.Audio))
	case EventBehavior:
		a.logger.Debug("behavior",
			zap.String("agent", string(ev.AgentID)),
			zap.String("name", ev.Name),
			zap.String("behavior", ev.Text))
	}
	return nil
}
