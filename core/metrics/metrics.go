package metrics

import (
	"time"

	"github.com/kilianp07/icusim/core/simulation"
)

// RoundSample is a completed Monte Carlo round.
type RoundSample struct {
	RunID    string
	Round    int
	Admitted int
	Peak     int
	Elapsed  time.Duration
}

// MetricsSink records round samples for observability purposes.
type MetricsSink interface {
	RecordRound(s RoundSample) error
}

// RunSample describes a run that finished, successfully or not.
type RunSample struct {
	RunID    string
	Status   string
	Rounds   int
	Days     int
	Elapsed  time.Duration
	PeakDate time.Time
	PeakMean float64
	Time     time.Time
}

// RunRecorder records run completions.
type RunRecorder interface {
	RecordRun(s RunSample) error
}

// OccupancySample is the per-date summary of a completed run.
type OccupancySample struct {
	RunID string
	Rows  []simulation.SummaryRow
}

// OccupancyRecorder records the occupancy summary of a run.
type OccupancyRecorder interface {
	RecordOccupancy(s OccupancySample) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRound(RoundSample) error         { return nil }
func (NopSink) RecordRun(RunSample) error             { return nil }
func (NopSink) RecordOccupancy(OccupancySample) error { return nil }
