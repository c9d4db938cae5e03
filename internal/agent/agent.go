package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
	"go.uber.org/zap"
)

var (
	// ErrRemoved is returned for events delivered to a removed agent.
	ErrRemoved = errors.New("agent removed")
	// ErrNoCatalog is returned by New without a catalog.
	ErrNoCatalog = errors.New("agent requires a catalog")
	// ErrNoRoster is returned by New without a roster.
	ErrNoRoster = errors.New("agent requires a roster")
)

// placementBorder keeps freshly spawned agents away from the screen edges.
const placementBorder = 50

// Options configures a new agent.
type Options struct {
	ID        roster.Handle // issued with roster.NewHandle when empty
	Roster    Roster
	Screen    geom.Screen
	Executor  Executor
	Presenter Presenter
	Random    Random
	Settings  Settings
	Now       time.Time
	// Origin overrides the random initial placement of the sprite.
	Origin *geom.Point
	Logger *zap.Logger
}

type speech struct {
	line    *behavior.SpeechLine
	started time.Time
	visible bool
}

// Agent is the runtime state of one desktop companion. All exported methods
// are safe for concurrent use; transitions of one agent never overlap.
type Agent struct {
	id      roster.Handle
	catalog *behavior.Catalog

	current  *behavior.Definition
	previous *behavior.Definition

	origin   geom.Point // sprite top-left
	position geom.Point // logical anchor point, published to the roster

	dragging    bool
	sleeping    bool
	pointerOver bool
	removed     bool

	started  time.Time
	duration time.Duration

	state          behavior.TransitionType
	destination    geom.Point
	hasDestination bool
	followName     string
	followHandle   roster.Handle
	followOffset   geom.Point

	speech speech

	roster    Roster
	screen    geom.Screen
	exec      Executor
	presenter Presenter
	rng       Random
	mu        sync.Mutex
	logger    *zap.Logger
}

// New creates an agent, places it on screen and runs its first transition.
// The agent is not added to the roster; callers join it once New succeeds.
func New(cat *behavior.Catalog, opts Options) (*Agent, error) {
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if opts.Roster == nil {
		return nil, ErrNoRoster
	}
	if opts.ID == "" {
		opts.ID = roster.NewHandle()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Screen == nil {
		opts.Screen = geom.NewSharedScreen(geom.Size{Width: 1280, Height: 800})
	}
	if opts.Executor == nil {
		opts.Executor = NopExecutor{}
	}
	if opts.Presenter == nil {
		opts.Presenter = NopPresenter{}
	}
	if opts.Random == nil {
		opts.Random = NewRandom(uint64(opts.Now.UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	a := &Agent{
		id:        opts.ID,
		catalog:   cat,
		roster:    opts.Roster,
		screen:    opts.Screen,
		exec:      opts.Executor,
		presenter: opts.Presenter,
		rng:       opts.Random,
		logger: opts.Logger.With(
			zap.String("agent", string(opts.ID)),
			zap.String("name", cat.Name())),
	}
	if opts.Origin != nil {
		a.origin = *opts.Origin
	} else {
		a.origin = a.placement()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.changeBehavior(opts.Now, opts.Settings)
	return a, nil
}

// placement picks a random point inside the usable area, keeping a border.
func (a *Agent) placement() geom.Point {
	area := a.screen.UsableArea()
	pick := func(extent int) int {
		span := extent - 2*placementBorder
		if span <= 0 {
			return extent / 2
		}
		return placementBorder + int(a.rng.Int(0, int64(span-1)))
	}
	return geom.Point{X: pick(area.Width), Y: pick(area.Height)}
}

// ID is the roster handle of the agent.
func (a *Agent) ID() roster.Handle { return a.id }

// Name is the species display name.
func (a *Agent) Name() string { return a.catalog.Name() }

// Catalog is the immutable behavior set the agent runs on.
func (a *Agent) Catalog() *behavior.Catalog { return a.catalog }

// Position returns the logical position.
func (a *Agent) Position() geom.Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Current returns the active behavior.
func (a *Agent) Current() *behavior.Definition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Removed reports whether the agent received a remove event.
func (a *Agent) Removed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removed
}

// ChangeBehavior forces a full-cycle transition.
func (a *Agent) ChangeBehavior(now time.Time, s Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return ErrRemoved
	}
	a.changeBehavior(now, s)
	return nil
}

// body exposes agent internals to the executor. Callers hold a.mu.
type body struct{ a *Agent }

func (b body) ID() roster.Handle               { return b.a.id }
func (b body) Behavior() *behavior.Definition  { return b.a.current }
func (b body) State() behavior.TransitionType  { return b.a.state }
func (b body) Origin() geom.Point              { return b.a.origin }
func (b body) Position() geom.Point            { return b.a.position }
func (b body) Destination() (geom.Point, bool) { return b.a.destination, b.a.hasDestination }
func (b body) Area() geom.Size                 { return b.a.screen.UsableArea() }
func (b body) Move(origin geom.Point)          { b.a.moveTo(origin) }

func (a *Agent) moveTo(origin geom.Point) {
	a.origin = origin
	a.position = origin.Add(a.current.Anchor)
}
