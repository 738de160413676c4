package hsl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"golang.org/x/sync/errgroup"

	"citybike-sync/browser"
	"citybike-sync/config"
	"citybike-sync/models"
	"citybike-sync/utils"
)

const (
	loginLabel     = "Kirjaudu"
	usernameField  = ".login-username-field"
	passwordField  = ".login-password-field"
	rentalPrefix   = "Rental_rental_"
	datePrefix     = "Rental_date__"
	durationPrefix = "Rental_duration__"
	distancePrefix = "Rental_distance__"
)

// Scraper reads the rental history of the city bike account.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	loc    *time.Location
}

// New creates a ready-to-use rental history Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger, loc: time.Local}
}

// FetchRentals logs in and returns every rental listed on the history page,
// in page order. A single malformed rental card fails the whole fetch.
func (s *Scraper) FetchRentals(ctx context.Context, page browser.Page) ([]models.Rental, error) {
	if err := s.login(ctx, page); err != nil {
		return nil, fmt.Errorf("hsl login: %w", err)
	}

	cards, err := page.QueryAll(ctx, nil, browser.ByClassPrefix(rentalPrefix))
	if err != nil {
		return nil, fmt.Errorf("hsl rental cards: %w", err)
	}
	s.logger.Info("[hsl] Found %d rental cards", len(cards))

	rentals := make([]models.Rental, len(cards))
	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, s.cfg.RateLimitMs)
	for i, card := range cards {
		i, card := i, card
		pool.Submit(func() error {
			r, err := s.extractRental(ctx, page, card, fmt.Sprintf("rental #%d", i+1))
			if err != nil {
				return err
			}
			rentals[i] = r
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	for _, r := range rentals {
		s.logger.Debug("[hsl] %s: %d min, %.2f km", utils.DayKey(r.Date), r.DurationMinutes, r.DistanceKilometers)
	}
	return rentals, nil
}

func (s *Scraper) login(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, s.cfg.HSLHistoryURL); err != nil {
		return err
	}

	controls, err := page.FindByLabel(ctx, loginLabel)
	if err != nil {
		return err
	}
	if len(controls) == 0 {
		s.logger.Info("[hsl] Already logged in")
		return nil
	}

	s.logger.Info("[hsl] Logging in")
	if err := page.WaitForNavigation(ctx, func(ctx context.Context) error {
		return page.Click(ctx, controls[0])
	}, browser.WaitLoad); err != nil {
		return fmt.Errorf("open login form: %w", err)
	}

	if err := typeInto(ctx, page, usernameField, s.cfg.HSL.Username); err != nil {
		return err
	}
	if err := typeInto(ctx, page, passwordField, s.cfg.HSL.Password); err != nil {
		return err
	}

	// The login is followed by a chain of redirects.
	return browser.ClickAndWait(ctx, page, loginLabel, browser.WaitLoad, browser.WaitNetworkIdle)
}

func typeInto(ctx context.Context, page browser.Page, selector, text string) error {
	field, err := browser.QueryOne(ctx, page, nil, selector)
	if err != nil {
		return err
	}
	if field == nil {
		return &models.ExtractionError{Field: selector, Element: "login form"}
	}
	return page.Type(ctx, field, text)
}

// extractRental reads the three fields of one card concurrently.
func (s *Scraper) extractRental(ctx context.Context, page browser.Page, card *cdp.Node, element string) (models.Rental, error) {
	var r models.Rental
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := fieldText(gctx, page, card, datePrefix)
		if err == nil {
			r.Date, err = ParseDate(text, s.loc)
		}
		return wrapField(err, "date", element)
	})
	g.Go(func() error {
		text, err := fieldText(gctx, page, card, durationPrefix)
		if err == nil {
			r.DurationMinutes, err = ParseDurationMinutes(text)
		}
		return wrapField(err, "duration", element)
	})
	g.Go(func() error {
		text, err := fieldText(gctx, page, card, distancePrefix)
		if err == nil {
			r.DistanceKilometers, err = ParseDistanceKilometers(text)
		}
		return wrapField(err, "distance", element)
	})

	if err := g.Wait(); err != nil {
		return models.Rental{}, err
	}
	return r, nil
}

func fieldText(ctx context.Context, page browser.Page, card *cdp.Node, prefix string) (string, error) {
	node, err := browser.QueryOne(ctx, page, card, browser.ByClassPrefix(prefix))
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", models.ErrStructure
	}
	return page.Text(ctx, node)
}

func wrapField(err error, field, element string) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrStructure) {
		return fmt.Errorf("%s %s: %w", element, field, err)
	}
	return &models.ExtractionError{Field: field, Element: element, Err: err}
}
