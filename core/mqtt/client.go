// Package mqtt defines the messages exchanged with the MQTT broker: run
// summaries published after each run and run requests received from it.
package mqtt

import (
	"time"

	"github.com/kilianp07/icusim/core/simulation"
)

// Summary is the payload published when a run completes.
type Summary struct {
	RunID     string                  `json:"run_id"`
	RequestID string                  `json:"request_id,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Seed      int64                   `json:"seed"`
	Rounds    int                     `json:"rounds"`
	PeakDate  time.Time               `json:"peak_date"`
	PeakMean  float64                 `json:"peak_mean"`
	Rows      []simulation.SummaryRow `json:"rows"`
}

// RunRequest asks a serving instance to run a simulation. Zero fields keep
// the configured values.
type RunRequest struct {
	RequestID string `json:"request_id"`
	Rounds    int    `json:"rounds,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
}

// RequestHandler receives decoded run requests.
type RequestHandler func(RunRequest)

// Publisher sends run summaries to the broker.
type Publisher interface {
	PublishSummary(s Summary) error
	Disconnect()
}

// NopPublisher drops every summary.
type NopPublisher struct{}

func (NopPublisher) PublishSummary(Summary) error { return nil }
func (NopPublisher) Disconnect()                  {}
