package services

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"citybike-sync/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRentalsInCurrentMonth(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rentals := []models.Rental{
		{Date: day(2024, 3, 31), DurationMinutes: 1},
		{Date: day(2024, 4, 1), DurationMinutes: 2},
		{Date: day(2024, 2, 29), DurationMinutes: 3},
		{Date: day(2024, 3, 1), DurationMinutes: 4},
		{Date: day(2023, 3, 10), DurationMinutes: 5},
	}

	got := RentalsInCurrentMonth(rentals, now)

	if len(got) != 2 {
		t.Fatalf("kept %d rentals, want 2: %+v", len(got), got)
	}
	if got[0].DurationMinutes != 1 || got[1].DurationMinutes != 4 {
		t.Errorf("kept the wrong rentals: %+v", got)
	}
}

func TestRentalsBeforeToday(t *testing.T) {
	now := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)
	rentals := []models.Rental{
		{Date: day(2024, 3, 14), DurationMinutes: 1},
		{Date: day(2024, 3, 15), DurationMinutes: 2},
	}

	got := RentalsBeforeToday(rentals, now)
	if len(got) != 1 || got[0].DurationMinutes != 1 {
		t.Errorf("RentalsBeforeToday = %+v; want only the 14th", got)
	}
}

func TestAggregateByDay(t *testing.T) {
	rentals := []models.Rental{
		{Date: day(2024, 3, 1), DurationMinutes: 10, DistanceKilometers: 2.5},
		{Date: day(2024, 3, 1), DurationMinutes: 20, DistanceKilometers: 1.5},
		{Date: day(2024, 3, 2), DurationMinutes: 5, DistanceKilometers: 0.0},
	}

	got := AggregateByDay(rentals)

	if len(got) != 2 {
		t.Fatalf("got %d submissions, want 2", len(got))
	}
	want := map[string]models.Submission{
		"2024-03-01": {Date: day(2024, 3, 1), Km: 4.0, Minutes: 30},
		"2024-03-02": {Date: day(2024, 3, 2), Km: 0.0, Minutes: 5},
	}
	for key, w := range want {
		g, ok := got[key]
		if !ok {
			t.Errorf("missing submission for %s", key)
			continue
		}
		if !g.Date.Equal(w.Date) || g.Km != w.Km || g.Minutes != w.Minutes {
			t.Errorf("%s: got %+v, want %+v", key, g, w)
		}
	}
}

func TestAggregateByDayEmpty(t *testing.T) {
	got := AggregateByDay(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("AggregateByDay(nil) = %v; want empty map", got)
	}
}

func TestAggregateByDaySingleRentalUnchanged(t *testing.T) {
	r := models.Rental{Date: day(2024, 3, 7), DurationMinutes: 42, DistanceKilometers: 7.3}

	got := AggregateByDay([]models.Rental{r})["2024-03-07"]
	if got.Km != r.DistanceKilometers || got.Minutes != r.DurationMinutes || !got.Date.Equal(r.Date) {
		t.Errorf("single-rental day changed: got %+v from %+v", got, r)
	}

	// Re-grouping the aggregated day gives the same totals.
	again := AggregateByDay([]models.Rental{{Date: got.Date, DurationMinutes: got.Minutes, DistanceKilometers: got.Km}})
	if again["2024-03-07"] != got {
		t.Errorf("re-grouping changed totals: %+v vs %+v", again["2024-03-07"], got)
	}
}

func TestAggregateByDayConservesTotals(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		rentals := make([]models.Rental, n)
		var km float64
		var minutes int
		for i := range rentals {
			rentals[i] = models.Rental{
				Date:               day(2024, 3, 1+rng.Intn(31)),
				DurationMinutes:    rng.Intn(120),
				DistanceKilometers: float64(rng.Intn(300)) / 10,
			}
			km += rentals[i].DistanceKilometers
			minutes += rentals[i].DurationMinutes
		}

		subs := AggregateByDay(rentals)

		var gotKm float64
		var gotMinutes int
		days := make(map[string]bool)
		for key, s := range subs {
			gotKm += s.Km
			gotMinutes += s.Minutes
			if key != s.Date.Format("2006-01-02") {
				t.Fatalf("key %s does not match submission date %v", key, s.Date)
			}
		}
		for _, r := range rentals {
			days[r.Date.Format("2006-01-02")] = true
		}

		if math.Abs(gotKm-km) > 1e-9 {
			t.Errorf("round %d: km total %.6f, want %.6f", round, gotKm, km)
		}
		if gotMinutes != minutes {
			t.Errorf("round %d: minutes total %d, want %d", round, gotMinutes, minutes)
		}
		if len(subs) != len(days) {
			t.Errorf("round %d: %d submissions for %d distinct days", round, len(subs), len(days))
		}
	}
}
