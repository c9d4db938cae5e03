package motion

import (
	"testing"
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeBody struct {
	def    *behavior.Definition
	state  behavior.TransitionType
	origin geom.Point
	dest   *geom.Point
	area   geom.Size
}

func (f *fakeBody) ID() roster.Handle              { return "body" }
func (f *fakeBody) Behavior() *behavior.Definition { return f.def }
func (f *fakeBody) State() behavior.TransitionType { return f.state }
func (f *fakeBody) Origin() geom.Point             { return f.origin }
func (f *fakeBody) Position() geom.Point           { return f.origin.Add(f.def.Anchor) }
func (f *fakeBody) Area() geom.Size                { return f.area }
func (f *fakeBody) Move(origin geom.Point)         { f.origin = origin }

func (f *fakeBody) Destination() (geom.Point, bool) {
	if f.dest == nil {
		return geom.Point{}, false
	}
	return *f.dest, true
}

func TestStep(t *testing.T) {
	tests := []struct {
		from, to geom.Point
		speed    int
		want     geom.Point
	}{
		{geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 3}, 10, geom.Point{X: 10, Y: 3}},
		{geom.Point{X: 50, Y: 50}, geom.Point{X: 0, Y: 0}, 20, geom.Point{X: 30, Y: 30}},
		{geom.Point{X: 5, Y: 5}, geom.Point{X: 7, Y: 4}, 10, geom.Point{X: 7, Y: 4}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Step(tt.from, tt.to, tt.speed))
	}
}

func TestMoveToDestination(t *testing.T) {
	w := NewWalker(zap.NewNop())
	dest := geom.Point{X: 130, Y: 110}
	b := &fakeBody{
		def:    &behavior.Definition{Name: "gallop", Speed: 20, Anchor: geom.Point{X: 10, Y: 10}},
		state:  behavior.TypeMovingToPoint,
		origin: geom.Point{X: 0, Y: 0},
		dest:   &dest,
		area:   geom.Size{Width: 800, Height: 600},
	}
	w.Init(b)
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Update(b, now)
	}
	assert.Equal(t, dest, b.Position())
	assert.Equal(t, geom.Point{X: 120, Y: 100}, b.origin)

	// arrived: no further motion
	w.Update(b, now)
	assert.Equal(t, dest, b.Position())
}

func TestNoDestinationStaysPut(t *testing.T) {
	w := NewWalker(zap.NewNop())
	b := &fakeBody{
		def:    &behavior.Definition{Name: "follow", Speed: 5},
		state:  behavior.TypeFollowing,
		origin: geom.Point{X: 40, Y: 40},
	}
	w.Update(b, time.Now())
	assert.Equal(t, geom.Point{X: 40, Y: 40}, b.origin)
}

func TestZeroSpeedStaysPut(t *testing.T) {
	w := NewWalker(zap.NewNop())
	b := &fakeBody{
		def:    &behavior.Definition{Name: "stand"},
		state:  behavior.TypeNormal,
		origin: geom.Point{X: 40, Y: 40},
		area:   geom.Size{Width: 800, Height: 600},
	}
	w.Init(b)
	w.Update(b, time.Now())
	assert.Equal(t, geom.Point{X: 40, Y: 40}, b.origin)
}

func TestWalkBouncesOffEdges(t *testing.T) {
	w := NewWalker(zap.NewNop())
	b := &fakeBody{
		def:    &behavior.Definition{Name: "trot", Speed: 30, Anchor: geom.Point{X: 20, Y: 15}},
		state:  behavior.TypeNormal,
		origin: geom.Point{X: 50, Y: 200},
		area:   geom.Size{Width: 200, Height: 400},
	}
	w.Init(b) // left half: heads right
	now := time.Now()

	w.Update(b, now)
	assert.Equal(t, geom.Point{X: 80, Y: 200}, b.origin)
	for i := 0; i < 3; i++ {
		w.Update(b, now)
	}
	// 80 -> 110 -> 140 -> 170 would overflow the 200px area with a 40px sprite
	assert.Equal(t, 160, b.origin.X)

	w.Update(b, now)
	assert.Equal(t, 130, b.origin.X, "turned around")
	for i := 0; i < 10; i++ {
		w.Update(b, now)
		assert.GreaterOrEqual(t, b.origin.X, 0)
		assert.LessOrEqual(t, b.origin.X, 160)
	}
	assert.Equal(t, 200, b.origin.Y)

	w.Deinit(b)
	assert.Empty(t, w.heading)
}
