// Package service runs one report generation: fetch both feeds, reconcile
// them and hand the result to every sink.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/report"
)

// OddsSource supplies bookmaker quotes.
type OddsSource interface {
	FetchOdds(ctx context.Context) ([]reconciliation.RawOdds, error)
}

// PredictionSource supplies model win probabilities.
type PredictionSource interface {
	FetchPredictions(ctx context.Context) ([]reconciliation.RawPrediction, error)
}

// GenerateOptions overrides per-run settings.
type GenerateOptions struct {
	// Name overrides the report name (default: today's date in the report zone).
	Name string
}

// SinkFailure records a sink that rejected a report.
type SinkFailure struct {
	Sink string `json:"sink"`
	Err  string `json:"error"`
}

// Status describes the most recent run.
type Status struct {
	Runs         int           `json:"runs"`
	LastRunAt    time.Time     `json:"last_run_at,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	LastReport   string        `json:"last_report,omitempty"`
	SinkFailures []SinkFailure `json:"sink_failures,omitempty"`
}

// Generator produces reports.
type Generator struct {
	odds     OddsSource
	preds    PredictionSource
	engine   *reconciliation.Engine
	timeZone string
	loc      *time.Location
	sinks    []report.Sink
	now      func() time.Time
	logger   *zerolog.Logger

	mu     sync.RWMutex
	latest *report.Report
	status Status
}

// Option configures a Generator
type Option func(*Generator)

// WithSinks appends report sinks. Sinks run in the order given.
func WithSinks(sinks ...report.Sink) Option {
	return func(g *Generator) {
		for _, s := range sinks {
			if s != nil {
				g.sinks = append(g.sinks, s)
			}
		}
	}
}

// WithClock overrides the clock used to name reports.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the generator logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator validates timeZone up front so a bad zone fails at startup
// rather than on the first scheduled run.
func NewGenerator(odds OddsSource, preds PredictionSource, engine *reconciliation.Engine, timeZone string, opts ...Option) (*Generator, error) {
	if odds == nil || preds == nil {
		return nil, errors.New("odds and prediction sources are required")
	}

	loc, err := reconciliation.LoadZone(timeZone)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		engine = reconciliation.NewEngine()
	}

	g := &Generator{
		odds:     odds,
		preds:    preds,
		engine:   engine,
		timeZone: timeZone,
		loc:      loc,
		now:      time.Now,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate runs one full cycle. Both feeds are fetched concurrently; if
// either fails no report is built. Sink failures are logged and recorded in
// Status but do not fail the run or stop the remaining sinks.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions) (*report.Report, error) {
	start := time.Now()

	rep, failures, err := g.generate(ctx, opts)

	g.mu.Lock()
	g.status.Runs++
	g.status.LastRunAt = start.UTC()
	g.status.LastDuration = time.Since(start)
	g.status.SinkFailures = failures
	g.status.LastError = ""
	if err != nil {
		g.status.LastError = err.Error()
	} else {
		g.latest = rep
		g.status.LastReport = rep.Name
	}
	g.mu.Unlock()

	return rep, err
}

func (g *Generator) generate(ctx context.Context, opts GenerateOptions) (*report.Report, []SinkFailure, error) {
	var (
		wg       sync.WaitGroup
		odds     []reconciliation.RawOdds
		preds    []reconciliation.RawPrediction
		oddsErr  error
		predsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		odds, oddsErr = g.odds.FetchOdds(ctx)
	}()
	go func() {
		defer wg.Done()
		preds, predsErr = g.preds.FetchPredictions(ctx)
	}()
	wg.Wait()

	if err := errors.Join(oddsErr, predsErr); err != nil {
		return nil, nil, fmt.Errorf("fetching feeds: %w", err)
	}

	res, err := g.engine.Reconcile(odds, preds, g.timeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("reconciling: %w", err)
	}

	rep := report.New(opts.Name, g.now(), g.loc, res)
	logger := g.logger.With().Str("run_id", rep.RunID.String()).Str("report", rep.Name).Logger()

	var failures []SinkFailure
	for _, sink := range g.sinks {
		if err := sink.Write(ctx, rep); err != nil {
			logger.Error().Err(err).Str("sink", sink.Name()).Msg("Sink failed")
			failures = append(failures, SinkFailure{Sink: sink.Name(), Err: err.Error()})
			continue
		}
		logger.Debug().Str("sink", sink.Name()).Msg("Report written")
	}

	logger.Info().
		Int("odds", res.Stats.OddsIn).
		Int("predictions", res.Stats.PredictionsIn).
		Int("games", len(rep.Records)).
		Int("skipped", len(res.Skipped)).
		Int("ambiguous", res.Stats.Ambiguous).
		Int("sink_failures", len(failures)).
		Msg("Report generated")

	return rep, failures, nil
}

// Latest returns the last successfully generated report, or nil.
func (g *Generator) Latest() *report.Report {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latest
}

// Status returns a snapshot of the last run.
func (g *Generator) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.status
	s.SinkFailures = append([]SinkFailure(nil), g.status.SinkFailures...)
	return s
}

// Metrics exposes the engine's cumulative counters.
func (g *Generator) Metrics() reconciliation.Metrics {
	return g.engine.Metrics()
}

// TimeZone is the zone reports are written in.
func (g *Generator) TimeZone() string {
	return g.timeZone
}
