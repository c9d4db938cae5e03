package bus

import (
	"context"
	"testing"

	"github.com/nidhogg/herd/internal/gateway"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// unstarted returns a bus whose client never connects.
func unstarted(opts Options) *Bus {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), opts, zap.NewNop())
}

func TestDefaults(t *testing.T) {
	b := unstarted(Options{})
	defer b.Close()
	assert.Equal(t, "redis", b.Name())
	assert.Equal(t, "herd:events", b.EventsStream())
	assert.Equal(t, "herd:input", b.InputStream())

	b2 := unstarted(Options{Prefix: "ponies/"})
	defer b2.Close()
	assert.Equal(t, "ponies/input", b2.InputStream())
}

func TestPublishQueuesWithoutBlocking(t *testing.T) {
	b := unstarted(Options{Queue: 2})
	defer b.Close()
	ctx := context.Background()

	assert.NoError(t, b.Publish(ctx, &gateway.Event{Type: gateway.EventFrame}))
	assert.Len(t, b.out, 0, "frames are not mirrored by default")

	for i := 0; i < 5; i++ {
		assert.NoError(t, b.Publish(ctx, &gateway.Event{Type: gateway.EventCaption}))
	}
	assert.Len(t, b.out, 2)
	assert.Equal(t, int64(3), b.Dropped())
}

func TestFramesOptIn(t *testing.T) {
	b := unstarted(Options{Frames: true})
	defer b.Close()
	assert.NoError(t, b.Publish(context.Background(), &gateway.Event{Type: gateway.EventFrame}))
	assert.Len(t, b.out, 1)
}
