package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/icusim/core/metrics"
	"github.com/kilianp07/icusim/infra/logger"
)

// InfluxSink writes run results to an InfluxDB instance using the official client.
// Per-round samples are not written; only run outcomes and the per-date
// occupancy summary are.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRound is a no-op; round level data is exposed through Prometheus.
func (s *InfluxSink) RecordRound(coremetrics.RoundSample) error { return nil }

// RecordRun writes the outcome of a run.
func (s *InfluxSink) RecordRun(r coremetrics.RunSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_run").
		AddTag("run_id", r.RunID).
		AddTag("status", r.Status).
		AddField("rounds", r.Rounds).
		AddField("days", r.Days).
		AddField("elapsed_ms", round3(r.Elapsed.Seconds()*1000)).
		AddField("peak_mean", round3(r.PeakMean)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOccupancy writes one point per horizon date, timestamped with the
// date itself.
func (s *InfluxSink) RecordOccupancy(o coremetrics.OccupancySample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(o.Rows))
	for _, row := range o.Rows {
		p := write.NewPointWithMeasurement("icu_occupancy").
			AddTag("run_id", o.RunID).
			AddField("mean", round3(row.Mean)).
			AddField("median", round3(row.Median)).
			AddField("std_dev", round3(row.StdDev)).
			AddField("min", row.Min).
			AddField("max", row.Max)
		for _, iv := range row.Intervals {
			suffix := massSuffix(iv.Mass)
			p = p.AddField("lb"+suffix, iv.Lower).AddField("ub"+suffix, iv.Upper)
		}
		points = append(points, p.SetTime(row.Date))
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// massSuffix renders 0.95 as "95" and 0.975 as "97.5".
func massSuffix(p float64) string {
	return strconv.FormatFloat(round3(p*100), 'f', -1, 64)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
