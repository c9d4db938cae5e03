package world

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClockListener receives world tick events.
type ClockListener interface {
	OnTick(worldTime time.Time)
}

// WorldClock drives the herd with a configurable tick rate and time speed.
// World time starts at wall time and advances by interval*speed per tick.
type WorldClock struct {
	speed     float64 // time multiplier, 1.0 = realtime
	interval  time.Duration
	listeners []ClockListener
	worldTime time.Time
	ticks     uint64
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

// NewWorldClock creates a clock with the given tick interval and speed multiplier.
func NewWorldClock(interval time.Duration, speed float64, logger *zap.Logger) *WorldClock {
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}
	if speed <= 0 {
		speed = 1
	}
	return &WorldClock{
		speed:     speed,
		interval:  interval,
		worldTime: time.Now(),
		logger:    logger,
	}
}

// AddListener registers a tick listener.
func (c *WorldClock) AddListener(l ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// WorldTime returns the current simulated world time.
func (c *WorldClock) WorldTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldTime
}

// Ticks returns how many ticks have fired.
func (c *WorldClock) Ticks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// Interval returns the wall-clock tick interval.
func (c *WorldClock) Interval() time.Duration { return c.interval }

// Speed returns the time multiplier.
func (c *WorldClock) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// SetSpeed changes the time multiplier. Non-positive values are ignored.
func (c *WorldClock) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

// Start begins the tick loop in a background goroutine. The loop ends when
// ctx is done or Stop is called.
func (c *WorldClock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
	c.logger.Info("world clock started",
		zap.Duration("interval", c.interval),
		zap.Float64("speed", c.Speed()))
}

// Stop halts the tick loop and waits for it to exit.
func (c *WorldClock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("world clock stopped")
}

func (c *WorldClock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick advances world time by one interval and notifies listeners.
func (c *WorldClock) Tick() {
	c.mu.Lock()
	c.worldTime = c.worldTime.Add(
		time.Duration(float64(c.interval) * c.speed),
	)
	c.ticks++
	wt := c.worldTime
	listeners := make([]ClockListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnTick(wt)
	}
}
