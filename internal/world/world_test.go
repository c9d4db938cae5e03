package world

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type mapSource map[string]behavior.Species

func (m mapSource) LookupSpecies(_ context.Context, id string) (behavior.Species, error) {
	sp, ok := m[id]
	if !ok {
		return behavior.Species{}, ErrSpeciesNotFound
	}
	return sp, nil
}

type memStore struct {
	mu      sync.Mutex
	members map[roster.Handle]Member
	saves   int
}

func newMemStore() *memStore { return &memStore{members: make(map[roster.Handle]Member)} }

func (s *memStore) SaveMember(_ context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	s.saves++
	return nil
}

func (s *memStore) DeleteMember(_ context.Context, id roster.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, id)
	return nil
}

func (s *memStore) DeleteAllMembers(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[roster.Handle]Member)
	return nil
}

func (s *memStore) ListMembers(context.Context) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out, nil
}

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]agent.Snapshot
}

func (r *frameRecorder) Frame(_ time.Time, agents []agent.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, agents)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) WorldTime() time.Time { return c.t }

func species() mapSource {
	return mapSource{
		"rainbow-dash": {Name: "Rainbow Dash", Behaviors: []behavior.Definition{
			{Name: "hover", Weight: 1, DurationMin: 60, DurationMax: 60},
			{Name: "nap", Weight: 0, DurationMin: 1, DurationMax: 1, Movement: behavior.MovementSleep, Skip: true},
		}},
		"scootaloo": {Name: "Scootaloo", Behaviors: []behavior.Definition{
			{Name: "chase", Weight: 1, DurationMin: 60, DurationMax: 60,
				Type: behavior.TypeFollowing, FollowTarget: "Rainbow Dash"},
		}},
		"broken": {Name: "Broken", Behaviors: []behavior.Definition{
			{Name: "idle", Weight: 1, Skip: true},
		}},
	}
}

func newTestHerd(opts Options) *Herd {
	if opts.Species == nil {
		opts.Species = species()
	}
	if opts.Clock == nil {
		opts.Clock = &fixedClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	}
	return NewHerd(opts, zap.NewNop())
}

func TestSpawnJoinsRoster(t *testing.T) {
	h := newTestHerd(Options{})
	a, err := h.Spawn(context.Background(), "rainbow-dash")
	require.NoError(t, err)

	assert.Equal(t, "Rainbow Dash", a.Name())
	assert.Equal(t, 1, h.Roster().Len())
	got, ok := h.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestSpawnFailuresNeverJoin(t *testing.T) {
	h := newTestHerd(Options{})

	_, err := h.Spawn(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSpeciesNotFound)

	_, err = h.Spawn(context.Background(), "broken")
	assert.ErrorIs(t, err, behavior.ErrNoRandomBehaviors)

	assert.Zero(t, h.Len())
	assert.Zero(t, h.Roster().Len())
}

func TestFollowResolvesThroughHerdRoster(t *testing.T) {
	h := newTestHerd(Options{})
	ctx := context.Background()

	lonely, err := h.Spawn(ctx, "scootaloo")
	require.NoError(t, err)
	assert.Equal(t, behavior.TypeNormal, lonely.Snapshot().State)

	dash, err := h.Spawn(ctx, "rainbow-dash")
	require.NoError(t, err)
	fan, err := h.Spawn(ctx, "scootaloo")
	require.NoError(t, err)

	s := fan.Snapshot()
	assert.Equal(t, behavior.TypeFollowing, s.State)
	require.NotNil(t, s.Destination)
	assert.Equal(t, dash.Position(), *s.Destination)

	require.NoError(t, h.Remove(ctx, dash.ID()))
	h.OnTick(h.now().Add(time.Second))
	assert.Equal(t, behavior.TypeNormal, fan.Snapshot().State)
}

func TestFindByIDOrName(t *testing.T) {
	h := newTestHerd(Options{})
	a, err := h.Spawn(context.Background(), "rainbow-dash")
	require.NoError(t, err)

	for _, ref := range []string{string(a.ID()), "rainbow dash", "RAINBOW-DASH"} {
		got, ok := h.Find(ref)
		require.True(t, ok, ref)
		assert.Equal(t, a.ID(), got.ID())
	}
	_, ok := h.Find("applejack")
	assert.False(t, ok)
}

func TestDispatchAndRemove(t *testing.T) {
	ctx := context.Background()
	h := newTestHerd(Options{})
	a, err := h.Spawn(ctx, "rainbow-dash")
	require.NoError(t, err)

	require.NoError(t, h.Dispatch(ctx, a.ID(), agent.Sleep(true)))
	assert.Equal(t, "nap", a.Current().Name)

	require.NoError(t, h.Dispatch(ctx, a.ID(), agent.Event{Kind: agent.KindRemove}))
	assert.True(t, a.Removed())
	assert.Zero(t, h.Len())
	assert.Zero(t, h.Roster().Len())

	err = h.Dispatch(ctx, a.ID(), agent.Event{Kind: agent.KindPress})
	assert.ErrorIs(t, err, ErrAgentNotFound)
	assert.ErrorIs(t, h.Remove(ctx, a.ID()), ErrAgentNotFound)
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := newTestHerd(Options{Members: store})
	for i := 0; i < 3; i++ {
		_, err := h.Spawn(ctx, "rainbow-dash")
		require.NoError(t, err)
	}
	require.Len(t, store.members, 3)

	assert.Equal(t, 3, h.RemoveAll(ctx))
	assert.Zero(t, h.Len())
	assert.Zero(t, h.Roster().Len())
	assert.Empty(t, store.members)
}

func TestOnTickFeedsSink(t *testing.T) {
	sink := &frameRecorder{}
	h := newTestHerd(Options{Sink: sink})
	_, err := h.Spawn(context.Background(), "rainbow-dash")
	require.NoError(t, err)

	h.OnTick(h.now().Add(time.Second))
	require.Len(t, sink.frames, 1)
	require.Len(t, sink.frames[0], 1)
	assert.Equal(t, "hover", sink.frames[0][0].Behavior)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	id := roster.NewHandle()
	store.members[id] = Member{ID: id, Species: "rainbow-dash", Origin: geom.Point{X: 300, Y: 200}, Sleeping: true}
	ghost := roster.NewHandle()
	store.members[ghost] = Member{ID: ghost, Species: "nobody"}

	h := newTestHerd(Options{Members: store})
	n, err := h.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, ok := h.Get(id)
	require.True(t, ok)
	s := a.Snapshot()
	assert.Equal(t, geom.Point{X: 300, Y: 200}, s.Origin)
	assert.True(t, s.Sleeping)

	// restoring twice does not duplicate
	n, err = h.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, h.Len())
}

func TestSettingsApplyToTransitions(t *testing.T) {
	h := newTestHerd(Options{})
	s := agent.Settings{SpeechEnabled: true, SpeechDuration: time.Second}
	h.SetSettings(s)
	assert.Equal(t, s, h.Settings())
}

func TestClockTickNotifiesListeners(t *testing.T) {
	c := NewWorldClock(time.Second, 2, zap.NewNop())
	start := c.WorldTime()
	var got []time.Time
	c.AddListener(listenerFunc(func(wt time.Time) { got = append(got, wt) }))

	c.Tick()
	c.Tick()
	require.Len(t, got, 2)
	assert.Equal(t, start.Add(4*time.Second), got[1])
	assert.Equal(t, uint64(2), c.Ticks())

	c.SetSpeed(0)
	assert.Equal(t, 2.0, c.Speed())
}

type listenerFunc func(time.Time)

func (f listenerFunc) OnTick(wt time.Time) { f(wt) }

func TestClockStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewWorldClock(time.Millisecond, 1, zap.NewNop())
	ticked := make(chan struct{}, 1)
	c.AddListener(listenerFunc(func(time.Time) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}))
	c.Start(context.Background())
	c.Start(context.Background())
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("clock never ticked")
	}
	c.Stop()
	c.Stop()
}

func TestAutosave(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	calls := 0
	s := NewAutosave(time.Minute, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("disk full")
	}, zap.NewNop())

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.OnTick(t0)
	s.OnTick(t0.Add(30 * time.Second))
	s.Wait()
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()

	s.OnTick(t0.Add(time.Minute))
	s.Wait()
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestHerdSave(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := newTestHerd(Options{Members: store})
	a, err := h.Spawn(ctx, "rainbow-dash")
	require.NoError(t, err)
	require.NoError(t, h.Dispatch(ctx, a.ID(), agent.Sleep(true)))

	require.NoError(t, h.Save(ctx))
	assert.True(t, store.members[a.ID()].Sleeping)
}
