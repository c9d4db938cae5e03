package world

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SaveFunc persists the herd.
type SaveFunc func(ctx context.Context) error

// Autosave is a ClockListener that saves the herd every interval of world
// time. Saves run in the background; a tick that lands while a save is still
// running is skipped.
type Autosave struct {
	interval time.Duration
	lastSave time.Time
	saveFn   SaveFunc
	saving   bool
	wg       sync.WaitGroup
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewAutosave creates an autosave listener.
func NewAutosave(interval time.Duration, saveFn SaveFunc, logger *zap.Logger) *Autosave {
	return &Autosave{
		interval: interval,
		saveFn:   saveFn,
		logger:   logger,
	}
}

// OnTick implements ClockListener.
func (s *Autosave) OnTick(worldTime time.Time) {
	s.mu.Lock()
	if s.lastSave.IsZero() {
		s.lastSave = worldTime
		s.mu.Unlock()
		return
	}
	if worldTime.Sub(s.lastSave) < s.interval || s.saving {
		s.mu.Unlock()
		return
	}
	s.lastSave = worldTime
	s.saving = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(worldTime)
	}()
}

// SaveNow saves synchronously, bypassing the interval check.
func (s *Autosave) SaveNow(ctx context.Context) error {
	return s.saveFn(ctx)
}

// Wait blocks until a background save in flight has finished.
func (s *Autosave) Wait() { s.wg.Wait() }

func (s *Autosave) run(worldTime time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.saveFn(ctx); err != nil {
		s.logger.Warn("autosave failed", zap.Error(err))
	} else {
		s.logger.Debug("autosave done", zap.Time("world_time", worldTime))
	}

	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
}
