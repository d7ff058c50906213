package model

import "time"

// Duration is a length of stay in whole days, from admission to outcome.
type Duration int

// DayOf returns the calendar date of t as midnight UTC. The date is taken from
// t's own location so a local timestamp keeps its wall-clock day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b. The result is
// negative when b is before a.
func DaysBetween(a, b time.Time) int {
	a, b = DayOf(a), DayOf(b)
	return int(b.Sub(a).Hours() / 24)
}
