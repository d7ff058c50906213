package events

import (
	"time"

	"github.com/kilianp07/icusim/core/simulation"
)

// RoundEvent is published after each completed round.
type RoundEvent struct {
	RunID    string
	Round    int
	Admitted int
	Peak     int
	Elapsed  time.Duration
}

// Publisher is the subset of the event bus used to emit events.
type Publisher interface {
	Publish(e any)
}

// RoundPublisher is a simulation.Observer forwarding round reports to a bus.
type RoundPublisher struct {
	bus Publisher
}

// NewRoundPublisher returns an observer publishing RoundEvent values on bus.
func NewRoundPublisher(bus Publisher) *RoundPublisher {
	return &RoundPublisher{bus: bus}
}

// RoundDone implements simulation.Observer.
func (p *RoundPublisher) RoundDone(r simulation.RoundReport) {
	p.bus.Publish(RoundEvent{
		RunID:    r.RunID,
		Round:    r.Round,
		Admitted: r.Admitted,
		Peak:     r.Peak,
		Elapsed:  r.Elapsed,
	})
}
