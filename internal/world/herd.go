package world

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"go.uber.org/zap"
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrSpeciesNotFound = errors.New("species not found")
)

// SpeciesSource supplies parsed species records by id.
type SpeciesSource interface {
	LookupSpecies(ctx context.Context, id string) (behavior.Species, error)
}

// Member is the persisted part of an active agent.
type Member struct {
	ID       roster.Handle `json:"id"`
	Species  string        `json:"species"`
	Origin   geom.Point    `json:"origin"`
	Sleeping bool          `json:"sleeping"`
	JoinedAt time.Time     `json:"joined_at"`
}

// MembershipStore persists the active herd across restarts.
type MembershipStore interface {
	SaveMember(ctx context.Context, m Member) error
	DeleteMember(ctx context.Context, id roster.Handle) error
	DeleteAllMembers(ctx context.Context) error
	ListMembers(ctx context.Context) ([]Member, error)
}

// FrameSink receives the state of every agent after each tick.
type FrameSink interface {
	Frame(worldTime time.Time, agents []agent.Snapshot)
}

// Clock is the time base events are stamped with.
type Clock interface {
	WorldTime() time.Time
}

// Options wires a Herd. Species is required.
type Options struct {
	Species   SpeciesSource
	Members   MembershipStore
	Roster    *roster.Roster
	Screen    *geom.SharedScreen
	Presenter agent.Presenter
	Executor  agent.Executor
	Sink      FrameSink
	Clock     Clock
	Settings  agent.Settings
}

type member struct {
	agent    *agent.Agent
	species  string
	joinedAt time.Time
}

// Herd owns the active agents and the roster they share.
type Herd struct {
	species   SpeciesSource
	members   MembershipStore
	roster    *roster.Roster
	screen    *geom.SharedScreen
	presenter agent.Presenter
	executor  agent.Executor
	sink      FrameSink
	clock     Clock

	agents   map[roster.Handle]*member
	order    []roster.Handle
	settings agent.Settings
	seed     atomic.Uint64
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewHerd creates an empty herd.
func NewHerd(opts Options, logger *zap.Logger) *Herd {
	if opts.Roster == nil {
		opts.Roster = roster.New()
	}
	if opts.Screen == nil {
		opts.Screen = geom.NewSharedScreen(geom.Size{Width: 1280, Height: 800})
	}
	if opts.Presenter == nil {
		opts.Presenter = agent.NopPresenter{}
	}
	if opts.Executor == nil {
		opts.Executor = agent.NopExecutor{}
	}
	h := &Herd{
		species:   opts.Species,
		members:   opts.Members,
		roster:    opts.Roster,
		screen:    opts.Screen,
		presenter: opts.Presenter,
		executor:  opts.Executor,
		sink:      opts.Sink,
		clock:     opts.Clock,
		agents:    make(map[roster.Handle]*member),
		settings:  opts.Settings,
		logger:    logger,
	}
	h.seed.Store(uint64(time.Now().UnixNano()))
	return h
}

// Roster returns the shared roster.
func (h *Herd) Roster() *roster.Roster { return h.roster }

// Screen returns the usable area agents move in.
func (h *Herd) Screen() *geom.SharedScreen { return h.screen }

func (h *Herd) now() time.Time {
	if h.clock != nil {
		return h.clock.WorldTime()
	}
	return time.Now()
}

// Settings returns the current user toggles.
func (h *Herd) Settings() agent.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings
}

// SetSettings replaces the user toggles. They apply from the next transition.
func (h *Herd) SetSettings(s agent.Settings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings = s
}

// Spawn creates an agent of the given species and adds it to the roster.
func (h *Herd) Spawn(ctx context.Context, speciesID string) (*agent.Agent, error) {
	return h.spawn(ctx, Member{Species: speciesID})
}

func (h *Herd) spawn(ctx context.Context, m Member) (*agent.Agent, error) {
	if h.species == nil {
		return nil, fmt.Errorf("spawn %s: %w", m.Species, ErrSpeciesNotFound)
	}
	sp, err := h.species.LookupSpecies(ctx, m.Species)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", m.Species, err)
	}
	cat, err := behavior.NewCatalog(sp)
	if err != nil {
		return nil, fmt.Errorf("build catalog %s: %w", m.Species, err)
	}
	for _, ref := range cat.Dangling() {
		h.logger.Warn("unresolved reference",
			zap.String("species", m.Species),
			zap.String("behavior", ref.Behavior),
			zap.String("field", ref.Field),
			zap.String("name", ref.Name))
	}

	opts := agent.Options{
		ID:        m.ID,
		Roster:    h.roster,
		Screen:    h.screen,
		Executor:  h.executor,
		Presenter: h.presenter,
		Random:    agent.NewRandom(h.seed.Add(0x9e3779b97f4a7c15)),
		Settings:  h.Settings(),
		Now:       h.now(),
		Logger:    h.logger,
	}
	if m.ID != "" {
		origin := m.Origin
		opts.Origin = &origin
	}
	a, err := agent.New(cat, opts)
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", m.Species, err)
	}
	if m.Sleeping {
		if err := a.Dispatch(agent.Sleep(true), opts.Now, opts.Settings); err != nil {
			return nil, fmt.Errorf("restore sleep %s: %w", a.ID(), err)
		}
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}

	h.mu.Lock()
	h.agents[a.ID()] = &member{agent: a, species: m.Species, joinedAt: m.JoinedAt}
	h.order = append(h.order, a.ID())
	h.mu.Unlock()
	h.roster.Join(a.ID(), a.Name(), a.Position())

	h.logger.Info("agent spawned",
		zap.String("id", string(a.ID())),
		zap.String("species", m.Species),
		zap.String("name", a.Name()))

	if h.members != nil {
		if err := h.members.SaveMember(ctx, h.memberOf(a, m.Species, m.JoinedAt)); err != nil {
			h.logger.Warn("persist member failed", zap.String("id", string(a.ID())), zap.Error(err))
		}
	}
	return a, nil
}

func (h *Herd) memberOf(a *agent.Agent, species string, joinedAt time.Time) Member {
	s := a.Snapshot()
	return Member{ID: a.ID(), Species: species, Origin: s.Origin, Sleeping: s.Sleeping, JoinedAt: joinedAt}
}

// Remove takes an agent out of the herd and the roster.
func (h *Herd) Remove(ctx context.Context, id roster.Handle) error {
	h.mu.Lock()
	m, ok := h.agents[id]
	if ok {
		delete(h.agents, id)
		h.order = removeHandle(h.order, id)
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrAgentNotFound)
	}

	h.roster.Leave(id)
	if err := m.agent.Dispatch(agent.Event{Kind: agent.KindRemove}, h.now(), h.Settings()); err != nil && !errors.Is(err, agent.ErrRemoved) {
		h.logger.Warn("remove event failed", zap.String("id", string(id)), zap.Error(err))
	}
	h.logger.Info("agent removed", zap.String("id", string(id)), zap.String("name", m.agent.Name()))

	if h.members != nil {
		if err := h.members.DeleteMember(ctx, id); err != nil {
			h.logger.Warn("delete member failed", zap.String("id", string(id)), zap.Error(err))
		}
	}
	return nil
}

// RemoveAll empties the herd and returns how many agents were removed.
func (h *Herd) RemoveAll(ctx context.Context) int {
	h.mu.Lock()
	all := h.agents
	h.agents = make(map[roster.Handle]*member)
	h.order = nil
	h.mu.Unlock()

	now, s := h.now(), h.Settings()
	for id, m := range all {
		h.roster.Leave(id)
		_ = m.agent.Dispatch(agent.Event{Kind: agent.KindRemove}, now, s)
	}
	if h.members != nil {
		if err := h.members.DeleteAllMembers(ctx); err != nil {
			h.logger.Warn("delete members failed", zap.Error(err))
		}
	}
	h.logger.Info("herd cleared", zap.Int("removed", len(all)))
	return len(all)
}

func removeHandle(hs []roster.Handle, id roster.Handle) []roster.Handle {
	for i, h := range hs {
		if h == id {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}

// Get returns an agent by id.
func (h *Herd) Get(id roster.Handle) (*agent.Agent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.agents[id]
	if !ok {
		return nil, false
	}
	return m.agent, true
}

// Find resolves an id, or else the earliest agent whose display name or
// species id matches case-insensitively.
func (h *Herd) Find(ref string) (*agent.Agent, bool) {
	if a, ok := h.Get(roster.Handle(ref)); ok {
		return a, true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range h.order {
		m := h.agents[id]
		if strings.EqualFold(m.agent.Name(), ref) || strings.EqualFold(m.species, ref) {
			return m.agent, true
		}
	}
	return nil, false
}

// List returns the agents in spawn order.
func (h *Herd) List() []*agent.Agent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.agents[id].agent)
	}
	return out
}

// Len returns the number of active agents.
func (h *Herd) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// Snapshots returns the state of every agent in spawn order.
func (h *Herd) Snapshots() []agent.Snapshot {
	agents := h.List()
	out := make([]agent.Snapshot, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Snapshot())
	}
	return out
}

// Dispatch delivers an input event. A remove event takes the agent out of
// the herd.
func (h *Herd) Dispatch(ctx context.Context, id roster.Handle, ev agent.Event) error {
	a, ok := h.Get(id)
	if !ok {
		return fmt.Errorf("dispatch %s: %w", id, ErrAgentNotFound)
	}
	if ev.Kind == agent.KindRemove {
		return h.Remove(ctx, id)
	}
	if err := a.Dispatch(ev, h.now(), h.Settings()); err != nil {
		return fmt.Errorf("dispatch %s to %s: %w", ev.Kind, id, err)
	}
	return nil
}

// OnTick implements ClockListener.
func (h *Herd) OnTick(worldTime time.Time) {
	agents := h.List()
	s := h.Settings()
	frame := make([]agent.Snapshot, 0, len(agents))
	for _, a := range agents {
		if err := a.Update(worldTime, s); err != nil {
			continue
		}
		frame = append(frame, a.Snapshot())
	}
	if h.sink != nil {
		h.sink.Frame(worldTime, frame)
	}
}

// Members returns the persistable state of the herd.
func (h *Herd) Members() []Member {
	h.mu.RLock()
	ms := make([]*member, 0, len(h.order))
	for _, id := range h.order {
		ms = append(ms, h.agents[id])
	}
	h.mu.RUnlock()

	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, h.memberOf(m.agent, m.species, m.joinedAt))
	}
	return out
}

// Save persists every member.
func (h *Herd) Save(ctx context.Context) error {
	if h.members == nil {
		return nil
	}
	for _, m := range h.Members() {
		if err := h.members.SaveMember(ctx, m); err != nil {
			return fmt.Errorf("save member %s: %w", m.ID, err)
		}
	}
	return nil
}

// Restore respawns the persisted herd. Members that cannot be respawned are
// logged and skipped.
func (h *Herd) Restore(ctx context.Context) (int, error) {
	if h.members == nil {
		return 0, nil
	}
	ms, err := h.members.ListMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	n := 0
	for _, m := range ms {
		if _, ok := h.Get(m.ID); ok {
			continue
		}
		if _, err := h.spawn(ctx, m); err != nil {
			h.logger.Warn("restore member failed",
				zap.String("id", string(m.ID)),
				zap.String("species", m.Species),
				zap.Error(err))
			continue
		}
		n++
	}
	h.logger.Info("herd restored", zap.Int("agents", n))
	return n, nil
}
