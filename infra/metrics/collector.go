package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/icusim/core/events"
	coremetrics "github.com/kilianp07/icusim/core/metrics"
	"github.com/kilianp07/icusim/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.RoundEvent:
		_ = sink.RecordRound(coremetrics.RoundSample{
			RunID:    e.RunID,
			Round:    e.Round,
			Admitted: e.Admitted,
			Peak:     e.Peak,
			Elapsed:  e.Elapsed,
		})
	case events.RunEvent:
		if e.Status == events.RunStarted {
			return
		}
		if r, ok := sink.(coremetrics.RunRecorder); ok {
			_ = r.RecordRun(coremetrics.RunSample{
				RunID:    e.RunID,
				Status:   string(e.Status),
				Rounds:   e.Rounds,
				Elapsed:  e.Elapsed,
				PeakDate: e.PeakDate,
				PeakMean: e.PeakMean,
				Time:     time.Now(),
			})
		}
	}
}
