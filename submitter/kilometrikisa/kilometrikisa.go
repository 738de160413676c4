// Package kilometrikisa enters daily cycling totals into the contest site's
// distance and duration calendars.
package kilometrikisa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"

	"citybike-sync/browser"
	"citybike-sync/config"
	"citybike-sync/models"
	"citybike-sync/utils"
)

const (
	usernameLabel = "Oma käyttäjätunnuksesi"
	passwordLabel = "Salasana"
	loginLabel    = "Kirjaudu"
	statsLabel    = "Kirjaa kilometrisi"

	distanceForms = `form[class="km-log-form"]`
	distanceDate  = "input[name=km_date]"
	distanceInput = "input[name=km_amount]"

	durationForms = `#minute-calendar form[class="minute-log-form"]`
	durationDate  = "input[name=date]"
	hoursInput    = "input[name=hours]"
	minutesInput  = "input[name=minutes]"
)

// Result counts the forms that were filled and saved.
type Result struct {
	DistanceForms int
	DurationForms int
}

// Submitter drives the contest site's log forms.
type Submitter struct {
	cfg    *config.Config
	logger *utils.Logger
}

// New creates a Submitter.
func New(cfg *config.Config, logger *utils.Logger) *Submitter {
	return &Submitter{cfg: cfg, logger: logger}
}

// phase is one calendar of log forms sharing a save endpoint.
type phase struct {
	name      string
	forms     string
	dateField string
	saveURL   string
	// fill types the submission into form and returns the input to submit from.
	fill func(ctx context.Context, page browser.Page, form *cdp.Node, sub models.Submission, element string) (*cdp.Node, error)
}

// SubmitStats logs in and saves every submission whose day has a form on
// the page. Forms are saved one at a time, each confirmed by its save
// response before the next one is touched.
func (s *Submitter) SubmitStats(ctx context.Context, page browser.Page, subs models.SubmissionMap) (*Result, error) {
	if err := s.login(ctx, page); err != nil {
		return nil, fmt.Errorf("kilometrikisa login: %w", err)
	}
	if err := browser.ClickAndWait(ctx, page, statsLabel, browser.WaitLoad); err != nil {
		return nil, fmt.Errorf("kilometrikisa open stats: %w", err)
	}

	res := &Result{}
	var err error

	res.DistanceForms, err = s.runPhase(ctx, page, subs, phase{
		name:      "distance",
		forms:     distanceForms,
		dateField: distanceDate,
		saveURL:   s.cfg.KilometrikisaLogSaveURL,
		fill:      fillDistance,
	})
	if err != nil {
		return res, err
	}

	res.DurationForms, err = s.runPhase(ctx, page, subs, phase{
		name:      "duration",
		forms:     durationForms,
		dateField: durationDate,
		saveURL:   s.cfg.KilometrikisaMinuteSaveURL,
		fill:      fillDuration,
	})
	if err != nil {
		return res, err
	}

	if err := settle(ctx, s.cfg.SettleDelay); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Submitter) login(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, s.cfg.KilometrikisaLoginURL); err != nil {
		return err
	}
	if err := browser.TypeInto(ctx, page, usernameLabel, s.cfg.Kilometrikisa.Username); err != nil {
		return err
	}
	if err := browser.TypeInto(ctx, page, passwordLabel, s.cfg.Kilometrikisa.Password); err != nil {
		return err
	}
	return browser.ClickAndWait(ctx, page, loginLabel, browser.WaitLoad)
}

func (s *Submitter) runPhase(ctx context.Context, page browser.Page, subs models.SubmissionMap, ph phase) (int, error) {
	forms, err := page.QueryAll(ctx, nil, ph.forms)
	if err != nil {
		return 0, fmt.Errorf("kilometrikisa %s forms: %w", ph.name, err)
	}
	s.logger.Debug("[kilometrikisa] %d %s forms on page", len(forms), ph.name)

	filled := 0
	for i, form := range forms {
		element := fmt.Sprintf("%s form #%d", ph.name, i+1)

		date, err := requiredValue(ctx, page, form, ph.dateField, element)
		if err != nil {
			return filled, err
		}
		sub, ok := subs[date]
		if !ok {
			continue
		}

		s.logger.Info("[kilometrikisa] Have %s submission for date %s", ph.name, date)
		last, err := ph.fill(ctx, page, form, sub, element)
		if err != nil {
			return filled, err
		}
		if err := page.WaitForResponse(ctx, ph.saveURL, func(ctx context.Context) error {
			return page.PressEnter(ctx, last)
		}); err != nil {
			return filled, fmt.Errorf("kilometrikisa save %s %s: %w", ph.name, date, err)
		}
		filled++
	}

	s.logger.Info("[kilometrikisa] Saved %d %s forms", filled, ph.name)
	return filled, nil
}

func fillDistance(ctx context.Context, page browser.Page, form *cdp.Node, sub models.Submission, element string) (*cdp.Node, error) {
	input, err := requiredInput(ctx, page, form, distanceInput, element)
	if err != nil {
		return nil, err
	}
	return input, page.ClearAndType(ctx, input, models.FormatKm(sub.Km))
}

func fillDuration(ctx context.Context, page browser.Page, form *cdp.Node, sub models.Submission, element string) (*cdp.Node, error) {
	hoursField, err := requiredInput(ctx, page, form, hoursInput, element)
	if err != nil {
		return nil, err
	}
	minutesField, err := requiredInput(ctx, page, form, minutesInput, element)
	if err != nil {
		return nil, err
	}

	hours, minutes := models.SplitMinutes(sub.Minutes)
	if err := page.ClearAndType(ctx, hoursField, strconv.Itoa(hours)); err != nil {
		return nil, err
	}
	return minutesField, page.ClearAndType(ctx, minutesField, strconv.Itoa(minutes))
}

func requiredInput(ctx context.Context, page browser.Page, form *cdp.Node, selector, element string) (*cdp.Node, error) {
	input, err := browser.QueryOne(ctx, page, form, selector)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return nil, &models.ExtractionError{Field: selector, Element: element}
	}
	return input, nil
}

// requiredValue reads the value attribute of the input matching selector.
func requiredValue(ctx context.Context, page browser.Page, form *cdp.Node, selector, element string) (string, error) {
	input, err := requiredInput(ctx, page, form, selector, element)
	if err != nil {
		return "", err
	}
	value, ok, err := page.Attribute(ctx, input, "value")
	if err != nil {
		return "", err
	}
	if !ok || value == "" {
		return "", &models.ExtractionError{Field: selector + "@value", Element: element}
	}
	return value, nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
