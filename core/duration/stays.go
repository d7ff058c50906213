package duration

import (
	"fmt"
	"time"

	"github.com/kilianp07/icusim/core/model"
)

// Stay is one historical ICU stay, from admission to discharge or death.
type Stay struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the patient is still in the unit.
func (s Stay) Open() bool { return s.End.IsZero() }

// Days returns the stay length in calendar days.
func (s Stay) Days() int { return model.DaysBetween(s.Start, s.End) }

// StayDays converts closed stays into durations; open stays are skipped.
// Stays ending before they start are dropped when filterInverted is set and
// rejected otherwise.
func StayDays(stays []Stay, filterInverted bool) ([]model.Duration, error) {
	out := make([]model.Duration, 0, len(stays))
	for i, s := range stays {
		if s.Open() {
			continue
		}
		d := s.Days()
		if d < 0 {
			if filterInverted {
				continue
			}
			return nil, fmt.Errorf("%w: stay %d ends %d days before it starts", model.ErrValidation, i, -d)
		}
		out = append(out, model.Duration(d))
	}
	return out, nil
}

// FromStays builds a Bootstrap from historical stays.
func FromStays(stays []Stay, filterInverted bool) (*Bootstrap, error) {
	pool, err := StayDays(stays, filterInverted)
	if err != nil {
		return nil, err
	}
	return NewBootstrap(pool)
}
