// Package bus mirrors presentation events to Redis Streams and accepts
// renderer input from them, so out-of-process renderers can attach without
// a direct connection to the server.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidhogg/herd/internal/gateway"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultPrefix = "herd:"
	eventsStream  = "events"
	inputStream   = "input"
)

// Options tunes a Bus. Zero values pick defaults.
type Options struct {
	Prefix string // stream key prefix
	MaxLen int64  // approximate length cap of the events stream
	Queue  int    // outgoing events buffered before dropping
	Frames bool   // also mirror per-tick frames
}

// Bus is a gateway adapter backed by Redis Streams.
type Bus struct {
	rdb     *redis.Client
	opts    Options
	out     chan *gateway.Event
	handler gateway.InputHandler
	dropped atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	logger *zap.Logger
}

// New connects to redisURL and checks the connection.
func New(ctx context.Context, redisURL string, opts Options, logger *zap.Logger) (*Bus, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, opts, logger), nil
}

// NewWithClient wraps an existing client. The bus owns it from now on.
func NewWithClient(rdb *redis.Client, opts Options, logger *zap.Logger) *Bus {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = 10000
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	return &Bus{
		rdb:    rdb,
		opts:   opts,
		out:    make(chan *gateway.Event, opts.Queue),
		logger: logger,
	}
}

// EventsStream is the key events are appended to.
func (b *Bus) EventsStream() string { return b.opts.Prefix + eventsStream }

// InputStream is the key renderer input is read from.
func (b *Bus) InputStream() string { return b.opts.Prefix + inputStream }

func (b *Bus) Name() string { return "redis" }

func (b *Bus) OnInput(h gateway.InputHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Dropped reports how many events were discarded on a full queue.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Publish queues an event for the writer. It never waits on Redis.
func (b *Bus) Publish(_ context.Context, ev *gateway.Event) error {
	if ev.Type == gateway.EventFrame && !b.opts.Frames {
		return nil
	}
	select {
	case b.out <- ev:
	default:
		b.dropped.Add(1)
	}
	return nil
}

// Start runs the writer and the input reader until Close.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	from := b.tail(ctx, b.InputStream())
	b.wg.Add(2)
	go b.writeLoop(ctx)
	go b.readLoop(ctx, from)
	b.logger.Info("redis bus started",
		zap.String("events", b.EventsStream()),
		zap.String("input", b.InputStream()))
}

func (b *Bus) writeLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.out:
			if err := b.append(ctx, ev); err != nil && ctx.Err() == nil {
				b.logger.Warn("mirror event failed",
					zap.String("type", string(ev.Type)), zap.Error(err))
			}
		}
	}
}

func (b *Bus) append(ctx context.Context, ev *gateway.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.EventsStream(),
		MaxLen: b.opts.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": string(ev.Type),
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.EventsStream(), err)
	}
	return nil
}

// tail returns the id of the newest entry of stream, so reading starts
// exactly after what exists now.
func (b *Bus) tail(ctx context.Context, stream string) string {
	msgs, err := b.rdb.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil {
		return "$"
	}
	if len(msgs) == 0 {
		return "0-0"
	}
	return msgs[0].ID
}

func (b *Bus) readLoop(ctx context.Context, lastID string) {
	defer b.wg.Done()
	stream := b.InputStream()

	for ctx.Err() == nil {
		results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   32,
			Block:   500 * time.Millisecond,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("read input stream failed", zap.String("stream", stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, r := range results {
			for _, msg := range r.Messages {
				lastID = msg.ID
				b.deliver(ctx, msg)
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, msg redis.XMessage) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		b.logger.Warn("input without data", zap.String("id", msg.ID))
		return
	}
	var in gateway.Input
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		b.logger.Warn("malformed input", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	in.Source = b.Name()

	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		return
	}
	if err := h(ctx, &in); err != nil {
		b.logger.Info("input rejected",
			zap.String("id", msg.ID),
			zap.String("agent", string(in.AgentID)),
			zap.Error(err))
	}
}

// SendInput appends a renderer message to the input stream.
func (b *Bus) SendInput(ctx context.Context, in *gateway.Input) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.InputStream(),
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.InputStream(), err)
	}
	return nil
}

// Subscribe streams events appended after the call. Cancel the context to
// stop; the channel is closed afterwards.
func (b *Bus) Subscribe(ctx context.Context) <-chan *gateway.Event {
	ch := make(chan *gateway.Event, 16)
	stream := b.EventsStream()
	lastID := b.tail(ctx, stream)

	go func() {
		defer close(ch)

		for ctx.Err() == nil {
			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   32,
				Block:   500 * time.Millisecond,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev gateway.Event
					if json.Unmarshal([]byte(data), &ev) != nil {
						continue
					}
					select {
					case ch <- &ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close stops the loops and the Redis connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		b.wg.Wait()
	}
	return b.rdb.Close()
}
