package simulation

import (
	"time"

	"github.com/kilianp07/icusim/core/model"
)

// Curve is the occupancy produced by one round: Values[i] beds are occupied
// on Start+i days.
type Curve struct {
	Round  int
	Start  time.Time
	Values []int
}

// Dates returns the day of each value.
func (c Curve) Dates() []time.Time {
	out := make([]time.Time, len(c.Values))
	for i := range c.Values {
		out[i] = model.AddDays(c.Start, i)
	}
	return out
}

// At returns the occupancy on day.
func (c Curve) At(day time.Time) (int, bool) {
	i := model.DaysBetween(c.Start, day)
	if i < 0 || i >= len(c.Values) {
		return 0, false
	}
	return c.Values[i], true
}

// Peak returns the highest occupancy of the curve.
func (c Curve) Peak() int {
	peak := 0
	for _, v := range c.Values {
		if v > peak {
			peak = v
		}
	}
	return peak
}
