package agent

import "math/rand/v2"

type pcgRandom struct {
	r *rand.Rand
}

// NewRandom returns a Random seeded deterministically from seed. Each agent
// owns its own generator, so no locking is done here.
func NewRandom(seed uint64) Random {
	return &pcgRandom{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *pcgRandom) Int(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + p.r.Int64N(max-min+1)
}

func (p *pcgRandom) Float(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + p.r.Float64()*(max-min)
}
