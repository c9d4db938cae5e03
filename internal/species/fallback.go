package species

import (
	"context"
	"errors"

	"github.com/nidhogg/herd/internal/behavior"
	"github.com/nidhogg/herd/internal/world"
)

// Fallback tries each source in turn, moving on only when a source does not
// know the species.
type Fallback []world.SpeciesSource

// LookupSpecies implements world.SpeciesSource.
func (f Fallback) LookupSpecies(ctx context.Context, id string) (behavior.Species, error) {
	err := world.ErrSpeciesNotFound
	for _, src := range f {
		if src == nil {
			continue
		}
		var sp behavior.Species
		sp, err = src.LookupSpecies(ctx, id)
		if err == nil {
			return sp, nil
		}
		if !errors.Is(err, world.ErrSpeciesNotFound) {
			return sp, err
		}
	}
	return behavior.Species{}, err
}
