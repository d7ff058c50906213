package scenarios

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/duration"
	"github.com/kilianp07/icusim/core/events"
	"github.com/kilianp07/icusim/core/simulation"
	"github.com/kilianp07/icusim/infra/logger"
	"github.com/kilianp07/icusim/infra/metrics"
	"github.com/kilianp07/icusim/internal/eventbus"
)

// RunScenario builds the simulator described by sc, runs it with a
// Prometheus sink attached and checks the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	res, err := simulate(t, sc)
	if want := parseError(sc.Expected.Error); want != nil {
		require.Error(t, err)
		assert.True(t, errors.Is(err, want), "scenario %s: expected %v, got %v", sc.Name, want, err)
		return
	}
	require.NoError(t, err, "scenario %s", sc.Name)

	ens := res.RawEnsemble()
	require.Len(t, ens, sc.Rounds)
	if sc.Expected.Days > 0 {
		assert.Equal(t, sc.Expected.Days, res.Days())
	}
	for i, row := range ens {
		if sc.Expected.Curve != nil {
			assert.Equal(t, sc.Expected.Curve, row, "round %d", i)
		}
		for d, v := range row {
			if sc.Expected.AllZero {
				assert.Zero(t, v, "round %d day %d", i, d)
			}
			if sc.Expected.MaxBeds > 0 {
				assert.LessOrEqual(t, v, sc.Expected.MaxBeds, "round %d day %d", i, d)
			}
			assert.GreaterOrEqual(t, v, 0)
		}
	}
	if sc.Expected.PeakDate != "" {
		peak, _ := res.Peak()
		assert.Equal(t, sc.Expected.PeakDate, peak.Format(time.DateOnly))
	}
	for _, want := range sc.Expected.Intervals {
		d, err := time.Parse(time.DateOnly, want.Date)
		require.NoError(t, err)
		iv, err := res.CredibleInterval(d, want.Mass)
		require.NoError(t, err)
		assert.Equal(t, want.Lower, iv.Lower, "%s p=%v lower", want.Date, want.Mass)
		assert.Equal(t, want.Upper, iv.Upper, "%s p=%v upper", want.Date, want.Mass)
	}
}

func simulate(t *testing.T, sc *Scenario) (*simulation.Results, error) {
	obs := make([]admissions.Observation, len(sc.Admissions))
	for i, a := range sc.Admissions {
		o, err := a.ToModel()
		require.NoError(t, err)
		obs[i] = o
	}
	adm, err := admissions.New(obs)
	if err != nil {
		return nil, err
	}
	pool, err := duration.NewBootstrap(sc.Durations)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	bus := eventbus.New(eventbus.WithBlocking())
	done := metrics.StartEventCollector(context.Background(), bus, sink)

	sim, err := simulation.New(adm, pool, simulation.Config{
		Rounds:         sc.Rounds,
		Seed:           sc.Seed,
		Workers:        sc.Workers,
		HorizonCapDays: sc.HorizonCapDays,
	}, simulation.WithObserver(events.NewRoundPublisher(bus)), simulation.WithLogger(logger.NopLogger{}))
	if err != nil {
		bus.Close()
		<-done
		return nil, err
	}
	res, err := sim.RunAll(context.Background())
	bus.Close()
	<-done
	if err != nil {
		return nil, err
	}

	expected := fmt.Sprintf(`
# HELP icusim_rounds_total Total number of completed Monte Carlo rounds
# TYPE icusim_rounds_total counter
icusim_rounds_total %d
`, sc.Rounds)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "icusim_rounds_total"))
	return res, nil
}
