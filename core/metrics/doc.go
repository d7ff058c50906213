// Package metrics defines the sinks simulation runs report to. A Sink
// records per-round samples; sinks may also implement RunRecorder and
// OccupancyRecorder. Sinks like PromSink and InfluxSink live in infra/metrics
// and are created by type name through NewMetricsSink, which returns a
// MultiSink when several sinks are configured.
package metrics
