package events

import "time"

// RunStatus is the lifecycle stage of a simulation run.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunEvent is published when a run changes status. PeakDate and PeakMean are
// only set for completed runs.
type RunEvent struct {
	RunID    string
	Status   RunStatus
	Rounds   int
	Elapsed  time.Duration
	PeakDate time.Time
	PeakMean float64
	Err      error
}
