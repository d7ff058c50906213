package simulation

import (
	"sync/atomic"
	"time"

	"github.com/kilianp07/icusim/core/logger"
)

// RoundReport describes a completed round.
type RoundReport struct {
	RunID    string
	Round    int
	Admitted int
	Peak     int
	Elapsed  time.Duration
}

// Observer is notified after each round completes. RoundDone is called from
// worker goroutines and must be safe for concurrent use. Observers never
// influence simulation output.
type Observer interface {
	RoundDone(r RoundReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(RoundReport)

// RoundDone calls f(r).
func (f ObserverFunc) RoundDone(r RoundReport) { f(r) }

// Observers fans a report out to several observers.
type Observers []Observer

// RoundDone forwards r to every non-nil observer.
func (o Observers) RoundDone(r RoundReport) {
	for _, obs := range o {
		if obs != nil {
			obs.RoundDone(r)
		}
	}
}

type nopObserver struct{}

func (nopObserver) RoundDone(RoundReport) {}

// LogProgress returns an observer logging every completed tenth of total rounds.
func LogProgress(log logger.Logger, total int) Observer {
	var done atomic.Int64
	return ObserverFunc(func(r RoundReport) {
		n := int(done.Add(1))
		if total <= 0 {
			return
		}
		if n*10/total != (n-1)*10/total {
			log.Infof("simulation %s: %d/%d rounds (%d%%)", r.RunID, n, total, n*100/total)
		}
	})
}
