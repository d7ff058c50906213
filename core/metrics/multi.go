package metrics

import "errors"

// MultiSink fans samples out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRound forwards the sample to all sinks and joins their errors.
func (m *MultiSink) RecordRound(s RoundSample) error {
	var errs []error
	for _, sink := range m.Sinks {
		errs = append(errs, sink.RecordRound(s))
	}
	return errors.Join(errs...)
}

// RecordRun forwards to sinks implementing RunRecorder.
func (m *MultiSink) RecordRun(s RunSample) error {
	var errs []error
	for _, sink := range m.Sinks {
		if r, ok := sink.(RunRecorder); ok {
			errs = append(errs, r.RecordRun(s))
		}
	}
	return errors.Join(errs...)
}

// RecordOccupancy forwards to sinks implementing OccupancyRecorder.
func (m *MultiSink) RecordOccupancy(s OccupancySample) error {
	var errs []error
	for _, sink := range m.Sinks {
		if r, ok := sink.(OccupancyRecorder); ok {
			errs = append(errs, r.RecordOccupancy(s))
		}
	}
	return errors.Join(errs...)
}
