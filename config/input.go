package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/icusim/pkg/dataset"
)

// InputConfig locates the stay records and, optionally, an admissions file.
// Without admissions_path the admissions are counted from the stays.
type InputConfig struct {
	StaysPath      string `json:"stays_path"`
	AdmissionsPath string `json:"admissions_path"`
	StartColumn    string `json:"start_column"`
	EndColumn      string `json:"end_column"`
	DateColumn     string `json:"date_column"`
	CountColumn    string `json:"count_column"`
	DateLayout     string `json:"date_layout"`
	FilterInverted *bool  `json:"filter_inverted"`
	WindowStart    string `json:"window_start"`
	WindowEnd      string `json:"window_end"`
}

// SetDefaults applies fallback values for optional fields.
func (c *InputConfig) SetDefaults() {
	if c.StartColumn == "" {
		c.StartColumn = dataset.DefaultStartColumn
	}
	if c.EndColumn == "" {
		c.EndColumn = dataset.DefaultEndColumn
	}
	if c.DateColumn == "" {
		c.DateColumn = dataset.DefaultDateColumn
	}
	if c.CountColumn == "" {
		c.CountColumn = dataset.DefaultCountColumn
	}
	if c.DateLayout == "" {
		c.DateLayout = dataset.DefaultLayout
	}
	if c.FilterInverted == nil {
		v := true
		c.FilterInverted = &v
	}
}

// Validate checks the admissions window. Paths are checked when the inputs
// are opened.
func (c InputConfig) Validate() error {
	_, _, err := c.Window()
	return err
}

// Window parses the optional admissions window. Zero times mean unset.
func (c InputConfig) Window() (start, end time.Time, err error) {
	if (c.WindowStart == "") != (c.WindowEnd == "") {
		return start, end, fmt.Errorf("input: window_start and window_end must be set together")
	}
	if c.WindowStart == "" {
		return start, end, nil
	}
	if start, err = time.Parse(time.DateOnly, c.WindowStart); err != nil {
		return start, end, fmt.Errorf("input.window_start: %w", err)
	}
	if end, err = time.Parse(time.DateOnly, c.WindowEnd); err != nil {
		return start, end, fmt.Errorf("input.window_end: %w", err)
	}
	return start, end, nil
}

// Options returns the dataset reader options.
func (c InputConfig) Options() dataset.Options {
	return dataset.Options{
		StartColumn: c.StartColumn,
		EndColumn:   c.EndColumn,
		DateColumn:  c.DateColumn,
		CountColumn: c.CountColumn,
		Layout:      c.DateLayout,
	}
}

// Filter reports whether inverted stays are dropped.
func (c InputConfig) Filter() bool {
	return c.FilterInverted == nil || *c.FilterInverted
}
