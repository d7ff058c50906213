// Package admissions holds the validated daily ICU admission counts consumed
// by the occupancy simulator.
package admissions

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/icusim/core/model"
)

// Observation is one raw (date, count) input pair. Only the calendar date of
// Date is used.
type Observation struct {
	Date  time.Time
	Count int
}

// Entry is one normalized day of the series.
type Entry struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Option configures series construction.
type Option func(*options)

type options struct {
	start, end time.Time
	window     bool
}

// WithWindow restricts the series to [start, end]. Every day of the window is
// present in the result, even before the first observation.
func WithWindow(start, end time.Time) Option {
	return func(o *options) {
		o.start = model.DayOf(start)
		o.end = model.DayOf(end)
		o.window = true
	}
}

// Series is a contiguous, gap-filled run of daily admission counts. It is
// immutable after New returns.
type Series struct {
	start  time.Time
	counts []int
}

// New normalizes and validates the observations.
func New(obs []Observation, opts ...Option) (*Series, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.window && o.end.Before(o.start) {
		return nil, fmt.Errorf("%w: window end %s before start %s", model.ErrValidation,
			o.end.Format(time.DateOnly), o.start.Format(time.DateOnly))
	}
	days, err := normalize(obs)
	if err != nil {
		return nil, err
	}
	if err := validate(days, o); err != nil {
		return nil, err
	}

	start, end := o.start, o.end
	if !o.window {
		start, end = days[0].Date, days[len(days)-1].Date
	}
	s := &Series{start: start, counts: make([]int, model.DaysBetween(start, end)+1)}
	for _, d := range days {
		s.counts[model.DaysBetween(start, d.Date)] = d.Count
	}
	return s, nil
}

// normalize truncates dates to days, sorts them and collapses exact duplicates.
func normalize(obs []Observation) ([]Entry, error) {
	days := make([]Entry, len(obs))
	for i, ob := range obs {
		days[i] = Entry{Date: model.DayOf(ob.Date), Count: ob.Count}
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	out := days[:0]
	for _, d := range days {
		if n := len(out); n > 0 && out[n-1].Date.Equal(d.Date) {
			if out[n-1].Count != d.Count {
				return nil, &model.DuplicateDateError{Date: d.Date, First: out[n-1].Count, Second: d.Count}
			}
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func validate(days []Entry, o options) error {
	if len(days) == 0 && !o.window {
		return fmt.Errorf("%w: empty admission series", model.ErrValidation)
	}
	for _, d := range days {
		if d.Count < 0 {
			return fmt.Errorf("%w: negative count %d on %s", model.ErrValidation, d.Count, d.Date.Format(time.DateOnly))
		}
		if o.window && (d.Date.Before(o.start) || d.Date.After(o.end)) {
			return fmt.Errorf("%w: %s outside window [%s, %s]", model.ErrValidation,
				d.Date.Format(time.DateOnly), o.start.Format(time.DateOnly), o.end.Format(time.DateOnly))
		}
	}
	return nil
}

// Series returns the normalized series, one entry per calendar day.
func (s *Series) Series() []Entry {
	out := make([]Entry, len(s.counts))
	for i, c := range s.counts {
		out[i] = Entry{Date: model.AddDays(s.start, i), Count: c}
	}
	return out
}

// Counts returns a copy of the daily counts, indexed from Start.
func (s *Series) Counts() []int {
	cp := make([]int, len(s.counts))
	copy(cp, s.counts)
	return cp
}

// Start returns the first day of the series.
func (s *Series) Start() time.Time { return s.start }

// End returns the last day of the series.
func (s *Series) End() time.Time { return model.AddDays(s.start, len(s.counts)-1) }

// Len returns the number of days covered.
func (s *Series) Len() int { return len(s.counts) }

// Total returns the sum of all admissions.
func (s *Series) Total() int {
	total := 0
	for _, c := range s.counts {
		total += c
	}
	return total
}

// Index returns the offset of day within the series.
func (s *Series) Index(day time.Time) (int, bool) {
	i := model.DaysBetween(s.start, day)
	if i < 0 || i >= len(s.counts) {
		return 0, false
	}
	return i, true
}

// CountAt returns the admissions counted on day, or zero outside the series.
func (s *Series) CountAt(day time.Time) int {
	if i, ok := s.Index(day); ok {
		return s.counts[i]
	}
	return 0
}

func (s *Series) String() string {
	return fmt.Sprintf("Admissions[Entries=%d, Total=%d]", s.Len(), s.Total())
}
