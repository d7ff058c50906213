package simulation

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/duration"
	"github.com/kilianp07/icusim/core/logger"
	"github.com/kilianp07/icusim/core/model"
)

// Config defines a simulation run.
type Config struct {
	// Rounds is the number of Monte Carlo rounds, at least one.
	Rounds int `json:"rounds"`
	// Seed is the base seed every round stream is derived from.
	Seed int64 `json:"seed"`
	// Workers bounds parallel rounds. Zero uses GOMAXPROCS.
	Workers int `json:"workers"`
	// HorizonCapDays limits how far past the last admission occupancy is
	// tracked. Zero uses the sampler's longest stay.
	HorizonCapDays int `json:"horizon_cap_days"`
}

// Option configures optional collaborators of a Simulator.
type Option func(*Simulator)

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(s *Simulator) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger used for run level messages.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRunID tags reports and results with an identifier.
func WithRunID(id string) Option {
	return func(s *Simulator) { s.runID = id }
}

// Simulator estimates ICU occupancy from admissions and a stay sampler. It
// never mutates its inputs and holds no per-round state, so rounds may run
// concurrently.
type Simulator struct {
	adm     *admissions.Series
	sampler duration.Sampler
	cfg     Config
	counts  []int
	extent  int

	observer Observer
	log      logger.Logger
	runID    string
}

// New validates the configuration and computes the output horizon.
func New(adm *admissions.Series, sampler duration.Sampler, cfg Config, opts ...Option) (*Simulator, error) {
	if adm == nil || sampler == nil {
		return nil, fmt.Errorf("%w: nil admissions or sampler", model.ErrInvalidArgument)
	}
	if cfg.Rounds < 1 {
		return nil, fmt.Errorf("%w: rounds must be >= 1, got %d", model.ErrInvalidArgument, cfg.Rounds)
	}
	if cfg.HorizonCapDays < 0 {
		return nil, fmt.Errorf("%w: negative horizon cap %d", model.ErrInvalidArgument, cfg.HorizonCapDays)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	extent, err := horizonExtent(sampler, cfg.HorizonCapDays)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		adm:      adm,
		sampler:  sampler,
		cfg:      cfg,
		counts:   adm.Counts(),
		extent:   extent,
		observer: nopObserver{},
		log:      logger.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// horizonExtent returns how many days past the last admission are tracked.
func horizonExtent(sampler duration.Sampler, capDays int) (int, error) {
	b, ok := sampler.(duration.Bounded)
	if !ok {
		if capDays == 0 {
			return 0, fmt.Errorf("%w: unbounded sampler requires a horizon cap", model.ErrInvalidArgument)
		}
		return capDays, nil
	}
	extent := int(b.MaxDuration())
	if capDays > 0 && capDays < extent {
		extent = capDays
	}
	return extent, nil
}

// Admissions returns the configured admissions.
func (s *Simulator) Admissions() *admissions.Series { return s.adm }

// Sampler returns the configured stay sampler.
func (s *Simulator) Sampler() duration.Sampler { return s.sampler }

// Config returns the effective configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Horizon returns the first day and the number of days of every curve.
func (s *Simulator) Horizon() (time.Time, int) {
	return s.adm.Start(), len(s.counts) + s.extent
}

// RunRound produces the occupancy curve of round i. The same (seed, i) always
// yields the same curve.
//
// A patient admitted on day a with a stay of d days occupies a bed on
// [a, a+d). Stays are accumulated in a difference array and prefix-summed
// once over the horizon.
func (s *Simulator) RunRound(i int) (Curve, error) {
	if i < 0 {
		return Curve{}, fmt.Errorf("%w: negative round index %d", model.ErrInvalidArgument, i)
	}
	rng := roundRand(s.cfg.Seed, i)
	start, n := s.Horizon()
	diff := make([]int, n+1)
	for day, c := range s.counts {
		if c == 0 {
			continue
		}
		stays, err := s.sampler.Sample(c, rng)
		if err != nil {
			return Curve{}, err
		}
		for _, d := range stays {
			end := day + int(d)
			if end > n {
				end = n
			}
			if end <= day {
				continue
			}
			diff[day]++
			diff[end]--
		}
	}
	values := make([]int, n)
	occupied := 0
	for k := range values {
		occupied += diff[k]
		values[k] = occupied
	}
	return Curve{Round: i, Start: start, Values: values}, nil
}

// RunAll executes every round on a bounded worker pool and returns the
// ensemble. Cancelling ctx stops dispatching new rounds; a cancelled run
// returns ctx.Err() and no results. The first round error aborts the run.
func (s *Simulator) RunAll(ctx context.Context) (*Results, error) {
	began := time.Now()
	start, n := s.Horizon()
	s.log.Infof("simulation %s: %d rounds, %d workers, %d days from %s",
		s.runID, s.cfg.Rounds, s.cfg.Workers, n, start.Format(time.DateOnly))

	ensemble := make([][]int, s.cfg.Rounds)
	admitted := s.adm.Total()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < s.cfg.Rounds; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			c, err := s.RunRound(i)
			if err != nil {
				return fmt.Errorf("round %d: %w", i, err)
			}
			ensemble[i] = c.Values
			s.observer.RoundDone(RoundReport{
				RunID:    s.runID,
				Round:    i,
				Admitted: admitted,
				Peak:     c.Peak(),
				Elapsed:  time.Since(t0),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Errorf("simulation %s failed: %v", s.runID, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.log.Warnf("simulation %s cancelled", s.runID)
		return nil, err
	}
	elapsed := time.Since(began)
	s.log.Infof("simulation %s: completed in %s", s.runID, elapsed)
	return &Results{
		runID:    s.runID,
		seed:     s.cfg.Seed,
		adm:      s.adm,
		start:    start,
		ensemble: ensemble,
		elapsed:  elapsed,
	}, nil
}
