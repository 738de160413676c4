package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citybike-sync/browser"
	"citybike-sync/browser/browsertest"
	"citybike-sync/models"
	"citybike-sync/submitter/kilometrikisa"
)

type fakeSession struct {
	page   browser.Page
	closed int
}

func (s *fakeSession) Page() browser.Page { return s.page }

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeSource struct {
	rentals []models.Rental
	err     error
	page    browser.Page
}

func (f *fakeSource) FetchRentals(_ context.Context, page browser.Page) ([]models.Rental, error) {
	f.page = page
	return f.rentals, f.err
}

type fakeSink struct {
	subs  models.SubmissionMap
	err   error
	page  browser.Page
	calls int
}

func (f *fakeSink) SubmitStats(_ context.Context, page browser.Page, subs models.SubmissionMap) (*kilometrikisa.Result, error) {
	f.calls++
	f.page = page
	f.subs = subs
	if f.err != nil {
		return nil, f.err
	}
	return &kilometrikisa.Result{DistanceForms: len(subs), DurationForms: len(subs)}, nil
}

func newPipeline(t *testing.T, source *fakeSource, sink *fakeSink) (*Pipeline, *fakeSession) {
	t.Helper()
	page, err := browsertest.New("<html></html>")
	require.NoError(t, err)

	session := &fakeSession{page: page}
	summary := NewSummaryService(newTestLogger())
	summary.out = &bytes.Buffer{}

	return &Pipeline{
		Launch:  func(context.Context) (Session, error) { return session, nil },
		Source:  source,
		Sink:    sink,
		Summary: summary,
		Logger:  newTestLogger(),
		Now:     func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	}, session
}

func marchRentals() []models.Rental {
	return []models.Rental{
		{Date: day(2024, 3, 1), DurationMinutes: 10, DistanceKilometers: 2.5},
		{Date: day(2024, 2, 29), DurationMinutes: 99, DistanceKilometers: 9.9},
		{Date: day(2024, 3, 1), DurationMinutes: 20, DistanceKilometers: 1.5},
		{Date: day(2024, 3, 15), DurationMinutes: 5, DistanceKilometers: 1.0},
	}
}

func TestPipelineRunsStagesOnOnePage(t *testing.T) {
	source := &fakeSource{rentals: marchRentals()}
	sink := &fakeSink{}
	p, session := newPipeline(t, source, sink)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 1, session.closed)
	assert.Same(t, session.page, source.page)
	assert.Same(t, session.page, sink.page)

	require.Len(t, sink.subs, 2)
	assert.Equal(t, 4.0, sink.subs["2024-03-01"].Km)
	assert.Equal(t, 30, sink.subs["2024-03-01"].Minutes)
	assert.Equal(t, 5, sink.subs["2024-03-15"].Minutes)
	assert.NotContains(t, sink.subs, "2024-02-29")
}

func TestPipelineExcludeToday(t *testing.T) {
	sink := &fakeSink{}
	p, _ := newPipeline(t, &fakeSource{rentals: marchRentals()}, sink)
	p.ExcludeToday = true

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, sink.subs, 1)
	assert.NotContains(t, sink.subs, "2024-03-15")
}

func TestPipelineClosesSessionOnFailure(t *testing.T) {
	fetchErr := &models.ExtractionError{Field: "date", Element: "rental #3"}
	submitErr := errors.New("navigation timeout")

	tests := map[string]struct {
		source    *fakeSource
		sink      *fakeSink
		want      error
		sinkCalls int
	}{
		"fetch fails":  {source: &fakeSource{err: fetchErr}, sink: &fakeSink{}, want: fetchErr, sinkCalls: 0},
		"submit fails": {source: &fakeSource{rentals: marchRentals()}, sink: &fakeSink{err: submitErr}, want: submitErr, sinkCalls: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			p, session := newPipeline(t, tc.source, tc.sink)

			err := p.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, 1, session.closed)
			assert.Equal(t, tc.sinkCalls, tc.sink.calls)
		})
	}
}

func TestPipelineLaunchFailure(t *testing.T) {
	source := &fakeSource{}
	p, session := newPipeline(t, source, &fakeSink{})
	noChrome := errors.New("exec: chrome not found")
	p.Launch = func(context.Context) (Session, error) { return nil, noChrome }

	err := p.Run(context.Background())
	assert.True(t, errors.Is(err, noChrome))
	assert.Zero(t, session.closed)
	assert.Nil(t, source.page, "nothing runs without a page")
}
