package models

import (
	"math"
	"strconv"
	"time"
)

// Rental is one bike-rental trip as scraped from the rental history page.
type Rental struct {
	Date               time.Time
	DurationMinutes    int
	DistanceKilometers float64
}

// Submission holds one calendar day's totals entered into the contest site.
type Submission struct {
	Date    time.Time
	Km      float64
	Minutes int
}

// SubmissionMap maps a yyyy-MM-dd day key to that day's Submission.
type SubmissionMap map[string]Submission

// FormatKm renders km with exactly one decimal, rounding half away from zero.
func FormatKm(km float64) string {
	return strconv.FormatFloat(math.Round(km*10)/10, 'f', 1, 64)
}

// SplitMinutes splits a total minute count into whole hours and remaining minutes.
func SplitMinutes(total int) (hours, minutes int) {
	return total / 60, total % 60
}

// Report summarises one completed run.
type Report struct {
	Days          []string
	TotalKm       float64
	TotalMinutes  int
	BusiestDay    string
	BusiestDayKm  float64
	DistanceForms int
	DurationForms int
}
