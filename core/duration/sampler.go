package duration

import (
	"math/rand/v2"

	"github.com/kilianp07/icusim/core/model"
)

// Sampler draws stay durations. Implementations must only use the provided
// random source so that callers control reproducibility.
type Sampler interface {
	// Sample returns exactly n durations. n == 0 yields an empty slice.
	Sample(n int, rng *rand.Rand) ([]model.Duration, error)
}

// Bounded is implemented by samplers whose support has a known upper bound.
type Bounded interface {
	MaxDuration() model.Duration
}
