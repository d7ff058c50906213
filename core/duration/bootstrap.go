package duration

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/icusim/core/model"
)

// Bootstrap samples uniformly with replacement from a pool of observed
// durations. The pool is copied at construction and never mutated, so a
// Bootstrap can be shared by concurrent rounds.
type Bootstrap struct {
	pool []model.Duration
	max  model.Duration
}

// NewBootstrap builds a sampler whose empirical distribution is exactly pool.
func NewBootstrap(pool []model.Duration) (*Bootstrap, error) {
	if len(pool) == 0 {
		return nil, model.ErrEmptyPool
	}
	cp := make([]model.Duration, len(pool))
	var maxD model.Duration
	for i, d := range pool {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative duration %d at index %d", model.ErrValidation, d, i)
		}
		if d > maxD {
			maxD = d
		}
		cp[i] = d
	}
	return &Bootstrap{pool: cp, max: maxD}, nil
}

// Sample draws n values independently from the pool.
func (b *Bootstrap) Sample(n int, rng *rand.Rand) ([]model.Duration, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: sample size %d", model.ErrInvalidArgument, n)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", model.ErrInvalidArgument)
	}
	out := make([]model.Duration, n)
	for i := range out {
		out[i] = b.pool[rng.IntN(len(b.pool))]
	}
	return out, nil
}

// MaxDuration returns the longest stay in the pool.
func (b *Bootstrap) MaxDuration() model.Duration { return b.max }

// Len returns the pool size.
func (b *Bootstrap) Len() int { return len(b.pool) }

// Pool returns a copy of the historical durations.
func (b *Bootstrap) Pool() []model.Duration {
	cp := make([]model.Duration, len(b.pool))
	copy(cp, b.pool)
	return cp
}

// Mean returns the average stay of the pool in days.
func (b *Bootstrap) Mean() float64 {
	xs := make([]float64, len(b.pool))
	for i, d := range b.pool {
		xs[i] = float64(d)
	}
	return stat.Mean(xs, nil)
}
