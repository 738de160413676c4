package hsl

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citybike-sync/browser/browsertest"
	"citybike-sync/config"
	"citybike-sync/models"
	"citybike-sync/utils"
)

const historyURL = "https://hsl.test/matkahistoria"

const loginForm = `
<button class="Header_login__q1">Kirjaudu</button>
<form>
  <input class="login-username-field" name="u">
  <input class="login-password-field" name="p" type="password">
</form>`

func card(date, duration, distance string) string {
	out := `<li class="Rental_rental__Xy12 Rental_even__Ab">`
	if date != "" {
		out += `<span class="Rental_date__k3">` + date + `</span>`
	}
	if duration != "" {
		out += `<span class="Rental_duration__k3">` + duration + `</span>`
	}
	if distance != "" {
		out += `<span class="Rental_distance__k3">` + distance + `</span>`
	}
	return out + `</li>`
}

func newScraper(t *testing.T) *Scraper {
	t.Helper()
	cfg := &config.Config{
		HSL:            config.Credentials{Username: "rider", Password: "secret"},
		HSLHistoryURL:  historyURL,
		MaxConcurrency: 2,
	}
	s := New(cfg, utils.NewLoggerTo(io.Discard, io.Discard))
	s.loc = time.UTC
	return s
}

func newPage(t *testing.T, markup string) *browsertest.FakePage {
	t.Helper()
	page, err := browsertest.New("<html><body>" + markup + "</body></html>")
	require.NoError(t, err)
	return page
}

func TestFetchRentalsLogsInAndKeepsPageOrder(t *testing.T) {
	page := newPage(t, loginForm+`<ul>`+
		card("ma 4.3.2024", "12 min", "2,4 km")+
		card("ti 5.3.2024", "30 min", "6,0 km")+
		card("ke 28.2.2024", "5 min", "0,8 km")+
		`</ul>`)

	rentals, err := newScraper(t).FetchRentals(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []models.Rental{
		{Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), DurationMinutes: 12, DistanceKilometers: 2.4},
		{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), DurationMinutes: 30, DistanceKilometers: 6.0},
		{Date: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), DurationMinutes: 5, DistanceKilometers: 0.8},
	}, rentals)

	assert.Equal(t, []string{
		browsertest.KindNavigate,
		browsertest.KindClick, browsertest.KindNavigation,
		browsertest.KindType, browsertest.KindType,
		browsertest.KindClick, browsertest.KindNavigation,
	}, page.Kinds())

	actions := page.Actions()
	assert.Equal(t, historyURL, actions[0].Value)
	assert.Equal(t, "load", actions[2].Value)
	assert.Equal(t, "load,networkIdle", actions[6].Value, "login must wait for load and network quiescence")

	assert.Equal(t, "rider", page.Value(page.Select(".login-username-field")[0]))
	assert.Equal(t, "secret", page.Value(page.Select(".login-password-field")[0]))
}

func TestFetchRentalsSkipsLoginWhenAuthenticated(t *testing.T) {
	page := newPage(t, `<ul>`+card("1.3.2024", "10 min", "1,0 km")+`</ul>`)

	rentals, err := newScraper(t).FetchRentals(context.Background(), page)
	require.NoError(t, err)

	assert.Len(t, rentals, 1)
	assert.Equal(t, []string{browsertest.KindNavigate}, page.Kinds())
}

func TestFetchRentalsEmptyHistory(t *testing.T) {
	page := newPage(t, `<p>Ei matkoja</p>`)

	rentals, err := newScraper(t).FetchRentals(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, rentals)
}

func TestFetchRentalsFailsOnMalformedCard(t *testing.T) {
	tests := map[string]struct {
		card  string
		field string
	}{
		"date missing":        {card: card("", "10 min", "1,0 km"), field: "date"},
		"date unmatched":      {card: card("eilen", "10 min", "1,0 km"), field: "date"},
		"duration missing":    {card: card("1.3.2024", "", "1,0 km"), field: "duration"},
		"distance unparsable": {card: card("1.3.2024", "10 min", "pitkä km"), field: "distance"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			page := newPage(t, `<ul>`+card("1.3.2024", "10 min", "1,0 km")+tc.card+`</ul>`)

			rentals, err := newScraper(t).FetchRentals(context.Background(), page)
			require.Error(t, err)
			assert.Nil(t, rentals, "no partial results")

			var extractErr *models.ExtractionError
			require.True(t, errors.As(err, &extractErr), "got %v", err)
			assert.Equal(t, tc.field, extractErr.Field)
			assert.Equal(t, "rental #2", extractErr.Element)
			assert.True(t, errors.Is(err, models.ErrStructure))
		})
	}
}

func TestFetchRentalsMissingLoginField(t *testing.T) {
	page := newPage(t, `<button>Kirjaudu</button><input class="login-username-field">`)

	_, err := newScraper(t).FetchRentals(context.Background(), page)

	var extractErr *models.ExtractionError
	require.True(t, errors.As(err, &extractErr), "got %v", err)
	assert.Equal(t, passwordField, extractErr.Field)
}

func TestFetchRentalsPropagatesNavigationError(t *testing.T) {
	page := newPage(t, "")
	offline := errors.New("net::ERR_INTERNET_DISCONNECTED")
	page.FailOn(browsertest.KindNavigate, offline)

	_, err := newScraper(t).FetchRentals(context.Background(), page)
	assert.True(t, errors.Is(err, offline))
	assert.False(t, errors.Is(err, models.ErrStructure))
}
