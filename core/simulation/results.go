package simulation

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/model"
)

// DefaultMasses are the interval probability masses reported by Summary when
// none are requested.
var DefaultMasses = []float64{0.5, 0.95}

// Interval is a credible interval over the round values of one day.
type Interval struct {
	Mass  float64 `json:"mass"`
	Lower int     `json:"lower"`
	Upper int     `json:"upper"`
}

// Width returns Upper - Lower.
func (i Interval) Width() int { return i.Upper - i.Lower }

// SummaryRow aggregates the ensemble on one day.
type SummaryRow struct {
	Date      time.Time  `json:"date"`
	Mean      float64    `json:"mean"`
	Median    float64    `json:"median"`
	StdDev    float64    `json:"std_dev"`
	Min       int        `json:"min"`
	Max       int        `json:"max"`
	Intervals []Interval `json:"intervals"`
}

// Results is the read-only ensemble of a completed run.
type Results struct {
	runID    string
	seed     int64
	adm      *admissions.Series
	start    time.Time
	ensemble [][]int
	elapsed  time.Duration
}

// RunID returns the identifier given with WithRunID.
func (r *Results) RunID() string { return r.runID }

// Seed returns the base seed of the run.
func (r *Results) Seed() int64 { return r.seed }

// Elapsed returns the wall time spent in RunAll.
func (r *Results) Elapsed() time.Duration { return r.elapsed }

// Admissions returns the series the run was built from.
func (r *Results) Admissions() *admissions.Series { return r.adm }

// Rounds returns the ensemble size.
func (r *Results) Rounds() int { return len(r.ensemble) }

// Start returns the first day of the horizon.
func (r *Results) Start() time.Time { return r.start }

// Days returns the horizon length.
func (r *Results) Days() int {
	if len(r.ensemble) == 0 {
		return 0
	}
	return len(r.ensemble[0])
}

// Dates returns the shared date axis of every round.
func (r *Results) Dates() []time.Time {
	out := make([]time.Time, r.Days())
	for i := range out {
		out[i] = model.AddDays(r.start, i)
	}
	return out
}

// RawEnsemble returns a copy of the rounds x days occupancy matrix.
func (r *Results) RawEnsemble() [][]int {
	out := make([][]int, len(r.ensemble))
	for i, row := range r.ensemble {
		out[i] = slices.Clone(row)
	}
	return out
}

// Curve returns round i as a Curve.
func (r *Results) Curve(i int) (Curve, error) {
	if i < 0 || i >= len(r.ensemble) {
		return Curve{}, fmt.Errorf("%w: round %d out of range", model.ErrInvalidArgument, i)
	}
	return Curve{Round: i, Start: r.start, Values: slices.Clone(r.ensemble[i])}, nil
}

// ValuesAt returns the occupancy of every round on date, in round order.
func (r *Results) ValuesAt(date time.Time) ([]int, error) {
	col, ok := r.column(date)
	if !ok {
		return nil, fmt.Errorf("%w: %s outside horizon", model.ErrInvalidArgument, model.DayOf(date).Format(time.DateOnly))
	}
	return r.values(col), nil
}

func (r *Results) column(date time.Time) (int, bool) {
	col := model.DaysBetween(r.start, date)
	return col, col >= 0 && col < r.Days()
}

func (r *Results) values(col int) []int {
	out := make([]int, len(r.ensemble))
	for i, row := range r.ensemble {
		out[i] = row[col]
	}
	return out
}

// CredibleInterval returns the highest-density interval containing at least
// ceil(p*rounds) of the round values on date. Among windows of equal width
// the one starting at the lowest value wins.
func (r *Results) CredibleInterval(date time.Time, p float64) (Interval, error) {
	if err := checkMass(p); err != nil {
		return Interval{}, err
	}
	vals, err := r.ValuesAt(date)
	if err != nil {
		return Interval{}, err
	}
	slices.Sort(vals)
	return hdi(vals, p), nil
}

func checkMass(p float64) error {
	if !(p > 0 && p < 1) {
		return fmt.Errorf("%w: probability mass %v outside (0, 1)", model.ErrInvalidArgument, p)
	}
	return nil
}

// hdi scans every window of k consecutive sorted values and keeps the
// narrowest.
func hdi(sorted []int, p float64) Interval {
	n := len(sorted)
	if n == 0 {
		return Interval{Mass: p}
	}
	// The epsilon keeps p*n exact products such as 0.95*100 from rounding up.
	k := int(math.Ceil(p*float64(n) - 1e-9))
	k = max(1, min(k, n))
	best := 0
	for i := 1; i+k-1 < n; i++ {
		if sorted[i+k-1]-sorted[i] < sorted[best+k-1]-sorted[best] {
			best = i
		}
	}
	return Interval{Mass: p, Lower: sorted[best], Upper: sorted[best+k-1]}
}

// Summary returns one row per horizon day with descriptive statistics and a
// credible interval for each mass. DefaultMasses is used when none is given.
func (r *Results) Summary(masses ...float64) ([]SummaryRow, error) {
	if len(masses) == 0 {
		masses = DefaultMasses
	}
	for _, p := range masses {
		if err := checkMass(p); err != nil {
			return nil, err
		}
	}
	rows := make([]SummaryRow, r.Days())
	xs := make([]float64, r.Rounds())
	for col := range rows {
		vals := r.values(col)
		slices.Sort(vals)
		for i, v := range vals {
			xs[i] = float64(v)
		}
		row := SummaryRow{
			Date:      model.AddDays(r.start, col),
			Median:    median(vals),
			Min:       vals[0],
			Max:       vals[len(vals)-1],
			Intervals: make([]Interval, len(masses)),
		}
		if len(xs) > 1 {
			row.Mean, row.StdDev = stat.MeanStdDev(xs, nil)
		} else {
			row.Mean = xs[0]
		}
		for i, p := range masses {
			row.Intervals[i] = hdi(vals, p)
		}
		rows[col] = row
	}
	return rows, nil
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// Peak returns the day with the highest mean occupancy and that mean.
func (r *Results) Peak() (time.Time, float64) {
	bestCol, bestMean := 0, math.Inf(-1)
	for col := 0; col < r.Days(); col++ {
		sum := 0
		for _, row := range r.ensemble {
			sum += row[col]
		}
		if m := float64(sum) / float64(len(r.ensemble)); m > bestMean {
			bestCol, bestMean = col, m
		}
	}
	if r.Days() == 0 {
		return r.start, 0
	}
	return model.AddDays(r.start, bestCol), bestMean
}
