package simulation

import (
	"math"
	"math/rand/v2"
)

// Sampler draws normally distributed values
type Sampler interface {
	Normal(mean, stdDev float64) float64
}

// BoxMuller turns uniform draws from a seedable source into normal draws.
// Each call consumes two uniforms and returns the cosine branch only.
type BoxMuller struct {
	rng *rand.Rand
}

// NewBoxMuller creates a sampler over the given source
func NewBoxMuller(src rand.Source) *BoxMuller {
	return &BoxMuller{rng: rand.New(src)}
}

// NewSeededBoxMuller creates a sampler with a deterministic PCG source
func NewSeededBoxMuller(seed uint64) *BoxMuller {
	return NewBoxMuller(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Normal returns a draw from Normal(mean, stdDev)
func (b *BoxMuller) Normal(mean, stdDev float64) float64 {
	// u1 must be in (0, 1] so the log stays finite
	u1 := 1 - b.rng.Float64()
	u2 := b.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z*stdDev
}

// SourceFactory builds the random source for one simulation request
type SourceFactory func() rand.Source

// DefaultSourceFactory seeds each request from the runtime's random generator
func DefaultSourceFactory() rand.Source {
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}
