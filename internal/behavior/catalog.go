package behavior

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoBehaviors is returned when a species defines no behaviors at all.
	ErrNoBehaviors = errors.New("species has no behaviors")
	// ErrNoRandomBehaviors is returned when no behavior can be chosen autonomously.
	ErrNoRandomBehaviors = errors.New("species has no randomly selectable behaviors")
	// ErrInvalidDefinition is returned for malformed behavior records.
	ErrInvalidDefinition = errors.New("invalid behavior definition")
)

// Catalog is the immutable, indexed behavior set of one species.
// It is safe for concurrent use once built.
type Catalog struct {
	name        string
	behaviors   map[string]*Definition
	lines       map[string]*SpeechLine
	random      []*Definition // ascending by weight
	sleep       []*Definition
	dragged     []*Definition
	mouseOver   []*Definition
	randomLines []*SpeechLine
	total       float64
}

// NewCatalog indexes a species. Either the whole catalog is built or an error
// is returned; a failed catalog must never back a running agent.
func NewCatalog(sp Species) (*Catalog, error) {
	if len(sp.Behaviors) == 0 {
		return nil, fmt.Errorf("load %q: %w", sp.Name, ErrNoBehaviors)
	}

	c := &Catalog{
		name:      sp.Name,
		behaviors: make(map[string]*Definition, len(sp.Behaviors)),
		lines:     make(map[string]*SpeechLine, len(sp.Lines)),
	}

	// Later records with the same name replace earlier ones in place.
	ordered := make([]*Definition, 0, len(sp.Behaviors))
	index := make(map[string]int, len(sp.Behaviors))
	for i := range sp.Behaviors {
		d := sp.Behaviors[i]
		d.normalize()
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("load %q: %w", sp.Name, err)
		}
		if at, ok := index[d.Name]; ok {
			ordered[at] = &d
		} else {
			index[d.Name] = len(ordered)
			ordered = append(ordered, &d)
		}
		c.behaviors[d.Name] = ordered[index[d.Name]]
	}

	for _, d := range ordered {
		if !d.Skip {
			c.random = append(c.random, d)
			c.total += d.Weight
		}
		switch d.Movement {
		case MovementSleep:
			c.sleep = append(c.sleep, d)
		case MovementDragged:
			c.dragged = append(c.dragged, d)
		case MovementMouseOver:
			c.mouseOver = append(c.mouseOver, d)
		}
	}
	if len(c.random) == 0 || !(c.total > 0) {
		return nil, fmt.Errorf("load %q: %w", sp.Name, ErrNoRandomBehaviors)
	}
	sort.SliceStable(c.random, func(i, j int) bool {
		return c.random[i].Weight < c.random[j].Weight
	})

	orderedLines := make([]*SpeechLine, 0, len(sp.Lines))
	lineIndex := make(map[string]int, len(sp.Lines))
	for i := range sp.Lines {
		l := sp.Lines[i]
		if at, ok := lineIndex[l.Name]; ok {
			orderedLines[at] = &l
		} else {
			lineIndex[l.Name] = len(orderedLines)
			orderedLines = append(orderedLines, &l)
		}
		c.lines[l.Name] = orderedLines[lineIndex[l.Name]]
	}
	for _, l := range orderedLines {
		if !l.Skip {
			c.randomLines = append(c.randomLines, l)
		}
	}
	return c, nil
}

// Name is the species display name.
func (c *Catalog) Name() string { return c.name }

// Len is the number of distinct behaviors.
func (c *Catalog) Len() int { return len(c.behaviors) }

// Behavior looks up a behavior by exact name.
func (c *Catalog) Behavior(name string) (*Definition, bool) {
	d, ok := c.behaviors[name]
	return d, ok
}

// Line looks up a speech line by exact name.
func (c *Catalog) Line(name string) (*SpeechLine, bool) {
	l, ok := c.lines[name]
	return l, ok
}

// HasLines reports whether the species defines any speech line.
func (c *Catalog) HasLines() bool { return len(c.lines) > 0 }

// Random returns the eligible-random behaviors, ascending by weight.
func (c *Catalog) Random() []*Definition { return c.random }

// Sleep returns the behaviors used while sleeping.
func (c *Catalog) Sleep() []*Definition { return c.sleep }

// Dragged returns the behaviors used while being dragged.
func (c *Catalog) Dragged() []*Definition { return c.dragged }

// MouseOver returns the behaviors used while the pointer hovers the agent.
func (c *Catalog) MouseOver() []*Definition { return c.mouseOver }

// RandomLines returns the speech lines eligible for random selection.
func (c *Catalog) RandomLines() []*SpeechLine { return c.randomLines }

// TotalWeight is the weight sum of the eligible-random behaviors.
func (c *Catalog) TotalWeight() float64 { return c.total }

// SelectWeighted performs roulette-wheel selection for a draw r in [0, TotalWeight()).
// It never returns nil: when rounding leaves r above the running sum, the
// heaviest behavior is chosen.
func (c *Catalog) SelectWeighted(r float64) *Definition {
	var sum float64
	for _, d := range c.random {
		sum += d.Weight
		if sum >= r {
			return d
		}
	}
	return c.random[len(c.random)-1]
}

// Reference is a name a behavior points at that the catalog cannot resolve.
type Reference struct {
	Behavior string `json:"behavior"`
	Field    string `json:"field"`
	Name     string `json:"name"`
}

// Dangling lists unresolved linked-behavior and speech-line names, and
// following behaviors without a target. None of these are fatal.
func (c *Catalog) Dangling() []Reference {
	var refs []Reference
	names := make([]string, 0, len(c.behaviors))
	for n := range c.behaviors {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		d := c.behaviors[n]
		if d.Linked != "" {
			if _, ok := c.behaviors[d.Linked]; !ok {
				refs = append(refs, Reference{Behavior: n, Field: "linked", Name: d.Linked})
			}
		}
		if d.StartLine != "" {
			if _, ok := c.lines[d.StartLine]; !ok {
				refs = append(refs, Reference{Behavior: n, Field: "start_line", Name: d.StartLine})
			}
		}
		if d.EndLine != "" {
			if _, ok := c.lines[d.EndLine]; !ok {
				refs = append(refs, Reference{Behavior: n, Field: "end_line", Name: d.EndLine})
			}
		}
		if d.Type == TypeFollowing && d.FollowTarget == "" {
			refs = append(refs, Reference{Behavior: n, Field: "follow_target"})
		}
	}
	return refs
}
