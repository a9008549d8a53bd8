// Package gamesim scrapes model win probabilities from mlbgamesim.com.
package gamesim

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/reconciliation"
)

// PredictionsURL is the moneyline predictions page.
const PredictionsURL = "https://www.mlbgamesim.com/mlb-predictions.asp?LineType=2"

// Scraper fetches and parses the predictions page.
type Scraper struct {
	fetcher Fetcher
	url     string
	loc     *time.Location
	now     func() time.Time
	logger  *zerolog.Logger
}

// Option configures a Scraper
type Option func(*Scraper)

// WithURL overrides PredictionsURL.
func WithURL(url string) Option {
	return func(s *Scraper) {
		if url != "" {
			s.url = url
		}
	}
}

// WithClock overrides the clock that decides which date "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithLogger sets the scraper logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// NewScraper creates a scraper. pageZone is the zone the page prints its
// game times in (America/New_York for mlbgamesim.com).
func NewScraper(fetcher Fetcher, pageZone *time.Location, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher: fetcher,
		url:     PredictionsURL,
		loc:     pageZone,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPredictions downloads the page and returns one record per game row.
func (s *Scraper) FetchPredictions(ctx context.Context) ([]reconciliation.RawPrediction, error) {
	start := time.Now()

	html, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}

	doc, err := ParseHTML(html)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}

	preds, err := ParsePredictions(doc, s.now(), s.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}

	s.logger.Info().
		Str("url", s.url).
		Int("predictions", len(preds)).
		Dur("took", time.Since(start)).
		Msg("Scraped predictions")

	return preds, nil
}
