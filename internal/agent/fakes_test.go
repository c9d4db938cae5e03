package agent

import (
	"sync"
	"time"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/roster"
)

// scriptRandom replays scripted draws. Float draws are fractions of the
// requested range; an exhausted script yields the lower bound.
type scriptRandom struct {
	ints     []int64
	floats   []float64
	intCalls [][2]int64
}

func (r *scriptRandom) Int(min, max int64) int64 {
	r.intCalls = append(r.intCalls, [2]int64{min, max})
	if len(r.ints) == 0 {
		return min
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v
}

func (r *scriptRandom) Float(min, max float64) float64 {
	if len(r.floats) == 0 {
		return min
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return min + f*(max-min)
}

type recordingExecutor struct {
	inits   []string
	deinits []string
	updates int
}

func (e *recordingExecutor) Init(b Body)            { e.inits = append(e.inits, b.Behavior().Name) }
func (e *recordingExecutor) Deinit(b Body)          { e.deinits = append(e.deinits, b.Behavior().Name) }
func (e *recordingExecutor) Update(Body, time.Time) { e.updates++ }

type recordingPresenter struct {
	mu       sync.Mutex
	captions []Caption
	moves    []geom.Point
	hides    int
	audio    []string
	changes  []Snapshot
}

func (p *recordingPresenter) ShowCaption(c Caption) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, c)
}

func (p *recordingPresenter) MoveCaption(_ roster.Handle, anchor geom.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = append(p.moves, anchor)
}

func (p *recordingPresenter) HideCaption(roster.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hides++
}

func (p *recordingPresenter) PlayAudio(_ roster.Handle, line *behavior.SpeechLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = append(p.audio, line.Audio)
}

func (p *recordingPresenter) BehaviorChanged(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, s)
}
