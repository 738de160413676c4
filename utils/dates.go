package utils

import "time"

// DayKeyLayout is the layout of day keys shared with the contest site's forms.
const DayKeyLayout = "2006-01-02"

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last representable instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Within reports whether t lies in the closed interval [start, end].
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// DayKey formats t as yyyy-MM-dd.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}
