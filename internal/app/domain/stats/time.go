package stats

import (
	"math"
	"time"
)

// Day boundaries are evaluated in UTC everywhere; mixing zones between the
// quota reset and the window queries would double- or zero-count responses
// near midnight.

// StartOfDayUTC truncates t to the beginning of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar day.
func SameDayUTC(a, b time.Time) bool {
	return StartOfDayUTC(a).Equal(StartOfDayUTC(b))
}

// Round1 rounds to one fractional digit, half away from zero. Average
// ratings use this convention uniformly.
func Round1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
