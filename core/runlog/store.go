// Package runlog persists one record per simulation run so that past runs can
// be listed and compared.
package runlog

import (
	"context"
	"time"
)

// RunRecord summarizes a finished simulation run.
type RunRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	Seed         int64     `json:"seed"`
	Rounds       int       `json:"rounds"`
	Workers      int       `json:"workers"`
	HorizonStart time.Time `json:"horizon_start"`
	HorizonDays  int       `json:"horizon_days"`
	Admitted     int       `json:"admitted"`
	PeakDate     time.Time `json:"peak_date,omitempty"`
	PeakMean     float64   `json:"peak_mean"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	Source       string    `json:"source,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// RunQuery defines filters for retrieving records. Zero values match all.
type RunQuery struct {
	Start  time.Time
	End    time.Time
	Status string
	Limit  int
}

func (q RunQuery) match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// limit keeps the q.Limit most recent records of a chronological slice.
func (q RunQuery) limit(recs []RunRecord) []RunRecord {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q RunQuery) ([]RunRecord, error)
	Close() error
}
