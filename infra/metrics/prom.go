package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/icusim/core/metrics"
)

// PromSink records simulation progress in Prometheus metrics.
type PromSink struct {
	rounds    prometheus.Counter
	roundTime prometheus.Histogram
	roundPeak prometheus.Histogram
	runs      *prometheus.CounterVec
	runTime   prometheus.Gauge
	peakMean  prometheus.Gauge
}

// NewPromSink registers simulation metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.rounds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "icusim_rounds_total",
		Help: "Total number of completed Monte Carlo rounds",
	})); err != nil {
		return nil, err
	}
	if s.roundTime, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "icusim_round_duration_seconds",
		Help:    "Wall time spent computing one round",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})); err != nil {
		return nil, err
	}
	if s.roundPeak, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "icusim_round_peak_beds",
		Help:    "Peak occupied beds of a round",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "icusim_runs_total",
		Help: "Simulation runs by final status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.runTime, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "icusim_last_run_duration_seconds",
		Help: "Wall time of the last finished run",
	})); err != nil {
		return nil, err
	}
	if s.peakMean, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "icusim_last_run_peak_mean_beds",
		Help: "Highest mean daily occupancy of the last completed run",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when an identical one
// exists, so several sinks may share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRound counts the round and observes its duration and peak.
func (s *PromSink) RecordRound(r coremetrics.RoundSample) error {
	s.rounds.Inc()
	s.roundTime.Observe(r.Elapsed.Seconds())
	s.roundPeak.Observe(float64(r.Peak))
	return nil
}

// RecordRun counts the run by status and updates the last run gauges.
func (s *PromSink) RecordRun(r coremetrics.RunSample) error {
	s.runs.WithLabelValues(r.Status).Inc()
	s.runTime.Set(r.Elapsed.Seconds())
	if r.Status == "completed" {
		s.peakMean.Set(r.PeakMean)
	}
	return nil
}
