package services

import (
	"time"

	"citybike-sync/models"
	"citybike-sync/utils"
)

// RentalsInCurrentMonth keeps the rentals dated within now's calendar
// month, both ends inclusive, in now's location.
func RentalsInCurrentMonth(rentals []models.Rental, now time.Time) []models.Rental {
	start, end := utils.StartOfMonth(now), utils.EndOfMonth(now)

	result := make([]models.Rental, 0, len(rentals))
	for _, r := range rentals {
		if utils.Within(r.Date, start, end) {
			result = append(result, r)
		}
	}
	return result
}

// RentalsBeforeToday drops rentals from now's day onwards.
func RentalsBeforeToday(rentals []models.Rental, now time.Time) []models.Rental {
	today := utils.StartOfDay(now)

	result := make([]models.Rental, 0, len(rentals))
	for _, r := range rentals {
		if r.Date.Before(today) {
			result = append(result, r)
		}
	}
	return result
}

// AggregateByDay sums rentals into one Submission per calendar day. The
// first rental seen for a day provides the Submission's date.
func AggregateByDay(rentals []models.Rental) models.SubmissionMap {
	subs := make(models.SubmissionMap)
	for _, r := range rentals {
		key := utils.DayKey(r.Date)
		sub, ok := subs[key]
		if !ok {
			sub.Date = r.Date
		}
		sub.Km += r.DistanceKilometers
		sub.Minutes += r.DurationMinutes
		subs[key] = sub
	}
	return subs
}
