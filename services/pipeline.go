package services

import (
	"context"
	"fmt"
	"time"

	"citybike-sync/browser"
	"citybike-sync/models"
	"citybike-sync/submitter/kilometrikisa"
	"citybike-sync/utils"
)

// Session is a launched browser owning one page.
type Session interface {
	Page() browser.Page
	Close() error
}

// RentalSource reads rentals from the bike-rental site.
type RentalSource interface {
	FetchRentals(ctx context.Context, page browser.Page) ([]models.Rental, error)
}

// StatsSink enters daily submissions into the contest site.
type StatsSink interface {
	SubmitStats(ctx context.Context, page browser.Page, subs models.SubmissionMap) (*kilometrikisa.Result, error)
}

// Pipeline runs one fetch → aggregate → submit pass on a single page.
type Pipeline struct {
	Launch       func(ctx context.Context) (Session, error)
	Source       RentalSource
	Sink         StatsSink
	Summary      *SummaryService
	Logger       *utils.Logger
	Now          func() time.Time
	ExcludeToday bool
}

// Run executes the pipeline. The browser session is closed exactly once,
// whether the run succeeds or not.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	session, err := p.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				p.Logger.Warn("[pipeline] Closing browser after failure: %v", cerr)
			}
		}
	}()
	page := session.Page()

	rentals, err := p.Source.FetchRentals(ctx, page)
	if err != nil {
		return fmt.Errorf("fetch rentals: %w", err)
	}

	ref := now()
	thisMonth := RentalsInCurrentMonth(rentals, ref)
	if p.ExcludeToday {
		thisMonth = RentalsBeforeToday(thisMonth, ref)
	}
	p.Logger.Info("[pipeline] %d of %d rentals fall in %s", len(thisMonth), len(rentals), ref.Format("January 2006"))

	subs := AggregateByDay(thisMonth)
	p.Logger.Info("[pipeline] Aggregated into %d daily submissions", len(subs))

	res, err := p.Sink.SubmitStats(ctx, page, subs)
	if err != nil {
		return fmt.Errorf("submit stats: %w", err)
	}

	if p.Summary != nil {
		report := p.Summary.Generate(subs)
		if res != nil {
			report.DistanceForms = res.DistanceForms
			report.DurationForms = res.DurationForms
		}
		p.Summary.Print(report, subs)
	}
	return nil
}
