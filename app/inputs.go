package app

import (
	"fmt"
	"time"

	"github.com/kilianp07/icusim/config"
	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/duration"
	"github.com/kilianp07/icusim/core/model"
	"github.com/kilianp07/icusim/pkg/dataset"
)

// Inputs are the validated simulation inputs.
type Inputs struct {
	Admissions *admissions.Series
	Sampler    *duration.Bootstrap
	// Stays is the number of stay records read, open ones included.
	Stays int
	// Dropped counts closed stays left out of the pool.
	Dropped int
}

// LoadInputs reads the stay records and the admissions described by cfg.
func LoadInputs(cfg config.InputConfig) (*Inputs, error) {
	if cfg.StaysPath == "" {
		return nil, fmt.Errorf("input.stays_path is required")
	}
	opts := cfg.Options()
	stays, err := dataset.LoadStays(cfg.StaysPath, opts)
	if err != nil {
		return nil, fmt.Errorf("stays: %w", err)
	}
	sampler, err := duration.FromStays(stays, cfg.Filter())
	if err != nil {
		return nil, fmt.Errorf("stays: %w", err)
	}

	obs := dataset.AdmissionsFromStays(stays)
	if cfg.AdmissionsPath != "" {
		if obs, err = dataset.LoadAdmissions(cfg.AdmissionsPath, opts); err != nil {
			return nil, fmt.Errorf("admissions: %w", err)
		}
	}
	var aopts []admissions.Option
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	if !start.IsZero() {
		aopts = append(aopts, admissions.WithWindow(start, end))
		if cfg.AdmissionsPath == "" {
			obs = clip(obs, start, end)
		}
	}
	series, err := admissions.New(obs, aopts...)
	if err != nil {
		return nil, fmt.Errorf("admissions: %w", err)
	}

	closed := 0
	for _, s := range stays {
		if !s.Open() {
			closed++
		}
	}
	return &Inputs{
		Admissions: series,
		Sampler:    sampler,
		Stays:      len(stays),
		Dropped:    closed - sampler.Len(),
	}, nil
}

// clip keeps the observations dated within [start, end].
func clip(obs []admissions.Observation, start, end time.Time) []admissions.Observation {
	out := obs[:0:0]
	for _, o := range obs {
		d := model.DayOf(o.Date)
		if d.Before(model.DayOf(start)) || d.After(model.DayOf(end)) {
			continue
		}
		out = append(out, o)
	}
	return out
}
