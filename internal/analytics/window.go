package analytics

import (
	"math"
	"time"
)

// Window is an inclusive time range. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Unbounded covers the whole history
var Unbounded = Window{}

// DayWindow covers the UTC calendar day of t, [00:00:00.000, 23:59:59.999]
func DayWindow(t time.Time) Window {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Window{From: start, To: start.AddDate(0, 0, 1).Add(-time.Millisecond)}
}

// MonthWindow covers [first day 00:00:00, last day 00:00:00) of the UTC
// month of anchor. Observations on the last day of the month are outside
// the window.
func MonthWindow(anchor time.Time) Window {
	anchor = anchor.UTC()
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1)
	return Window{From: first, To: lastDay.Add(-time.Millisecond)}
}

// RangeWindow covers the inclusive range [from, to]
func RangeWindow(from, to time.Time) Window {
	return Window{From: from.UTC(), To: to.UTC()}
}

// Normalize returns the relative spread (max-min)/min
func Normalize(minPrice, maxPrice float64) (float64, error) {
	if minPrice == 0 {
		return 0, errDivisionByZero(minPrice, maxPrice)
	}
	n := (maxPrice - minPrice) / minPrice
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errDivisionByZero(minPrice, maxPrice)
	}
	return n, nil
}
