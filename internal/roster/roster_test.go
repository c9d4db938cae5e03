package roster

import (
	"sync"
	"testing"

	"github.com/nidhogg/herd/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupByNameIsCaseInsensitiveAndExcludesSelf(t *testing.T) {
	r := New()
	self := NewHandle()
	other := NewHandle()
	r.Join(self, "Fluttershy", geom.Point{X: 1, Y: 1})
	r.Join(other, "Fluttershy", geom.Point{X: 10, Y: 20})

	e, ok := r.LookupByName(self, "fLUTTERSHY")
	require.True(t, ok)
	assert.Equal(t, other, e.Handle)
	assert.Equal(t, geom.Point{X: 10, Y: 20}, e.Position)

	_, ok = r.LookupByName(other, "rarity")
	assert.False(t, ok)
}

func TestLookupPrefersEarliestJoined(t *testing.T) {
	r := New()
	a, b := NewHandle(), NewHandle()
	r.Join(a, "Rarity", geom.Point{X: 1})
	r.Join(b, "rarity", geom.Point{X: 2})

	e, ok := r.LookupByName("", "RARITY")
	require.True(t, ok)
	assert.Equal(t, a, e.Handle)

	require.True(t, r.Leave(a))
	e, ok = r.LookupByName("", "RARITY")
	require.True(t, ok)
	assert.Equal(t, b, e.Handle)
}

func TestPublishAndLeave(t *testing.T) {
	r := New()
	h := NewHandle()
	r.Publish(h, geom.Point{X: 5}) // unknown handle is ignored
	_, ok := r.Position(h)
	assert.False(t, ok)

	r.Join(h, "Applejack", geom.Point{})
	r.Publish(h, geom.Point{X: 5, Y: 6})
	pos, ok := r.Position(h)
	require.True(t, ok)
	assert.Equal(t, geom.Point{X: 5, Y: 6}, pos)

	assert.True(t, r.Leave(h))
	assert.False(t, r.Leave(h))
	assert.Equal(t, 0, r.Len())
}

func TestActiveExcludesSelfInJoinOrder(t *testing.T) {
	r := New()
	hs := []Handle{NewHandle(), NewHandle(), NewHandle()}
	for i, h := range hs {
		r.Join(h, []string{"a", "b", "c"}[i], geom.Point{X: i})
	}
	active := r.Active(hs[1])
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Name)
	assert.Equal(t, "c", active[1].Name)
}

func TestConcurrentPublishAndLookup(t *testing.T) {
	r := New()
	hs := make([]Handle, 8)
	for i := range hs {
		hs[i] = NewHandle()
		r.Join(hs[i], "pony", geom.Point{})
	}

	var wg sync.WaitGroup
	for i, h := range hs {
		wg.Add(1)
		go func(i int, h Handle) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				r.Publish(h, geom.Point{X: n, Y: i})
				r.LookupByName(h, "PONY")
				r.Active(h)
			}
		}(i, h)
	}
	wg.Wait()
	assert.Equal(t, len(hs), r.Len())
}
