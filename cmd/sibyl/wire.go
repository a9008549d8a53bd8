package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fortuna/sibyl/internal/api/rest"
	"github.com/fortuna/sibyl/internal/cache"
	"github.com/fortuna/sibyl/internal/ingest/gamesim"
	"github.com/fortuna/sibyl/internal/ingest/oddsapi"
	"github.com/fortuna/sibyl/internal/notify"
	"github.com/fortuna/sibyl/internal/publisher"
	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/report"
	"github.com/fortuna/sibyl/internal/service"
	"github.com/fortuna/sibyl/internal/store"
)

// components is everything a run needs, built from config.
type components struct {
	generator *service.Generator
	reports   *store.ReportRepository
	odds      *oddsapi.Client
	checks    map[string]rest.HealthCheck
	closers   []func() error
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires sources, engine and sinks. extra sinks run after the
// configured ones.
func (a *app) build(ctx context.Context, extra ...report.Sink) (*components, error) {
	cfg := a.cfg
	c := &components{checks: map[string]rest.HealthCheck{}}

	fail := func(err error) (*components, error) {
		_ = c.Close()
		return nil, err
	}

	identity, err := cfg.Identity()
	if err != nil {
		return nil, err
	}
	policy, err := reconciliation.ParseMatchPolicy(cfg.Reconciliation.MatchPolicy)
	if err != nil {
		return nil, err
	}
	engine := reconciliation.NewEngine(
		reconciliation.WithIdentity(identity),
		reconciliation.WithMatchPolicy(policy),
		reconciliation.WithLogger(a.logger),
	)

	var redisCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, redisCache.Close)
		c.checks["redis"] = redisCache.HealthCheck
		a.logger.Info().Msg("Connected to Redis")
	}

	var odds service.OddsSource
	if cfg.OddsAPI.UseSampleData {
		odds = oddsapi.SampleSource{Path: cfg.OddsAPI.SampleFile, Logger: a.logger}
		a.logger.Info().Str("file", cfg.OddsAPI.SampleFile).Msg("Using sample odds")
	} else {
		opts := []oddsapi.Option{oddsapi.WithLogger(a.logger)}
		if redisCache != nil {
			opts = append(opts, oddsapi.WithCache(redisCache))
		}
		c.odds = oddsapi.New(oddsapi.Config{
			BaseURL:    cfg.OddsAPI.BaseURL,
			APIKey:     cfg.OddsAPI.APIKey,
			Sport:      cfg.OddsAPI.Sport,
			Regions:    cfg.OddsAPI.Regions,
			Markets:    cfg.OddsAPI.Markets,
			OddsFormat: cfg.OddsAPI.OddsFormat,
			Bookmakers: cfg.OddsAPI.Bookmakers,
			Timeout:    cfg.OddsAPI.Timeout,
			CacheTTL:   cfg.OddsAPI.CacheTTL,
		}, opts...)
		odds = c.odds
	}

	pageZone, err := reconciliation.LoadZone(cfg.Predictions.PageZone)
	if err != nil {
		return fail(err)
	}
	var fetcher gamesim.Fetcher
	if cfg.Predictions.Browser {
		bf := gamesim.NewBrowserFetcher(cfg.Predictions.MinInterval)
		c.closers = append(c.closers, func() error { bf.Close(); return nil })
		fetcher = bf
	} else {
		fetcher = gamesim.NewHTTPFetcher(&http.Client{Timeout: cfg.OddsAPI.Timeout}, cfg.Predictions.MinInterval)
	}
	preds := gamesim.NewScraper(fetcher, pageZone,
		gamesim.WithURL(cfg.Predictions.URL),
		gamesim.WithLogger(a.logger),
	)

	var sinks []report.Sink
	if cfg.Report.CSVDir != "" {
		sinks = append(sinks, &report.CSVSink{Dir: cfg.Report.CSVDir, Logger: a.logger})
	}

	if cfg.Postgres.DSN != "" {
		db, err := store.NewDatabase(cfg.Postgres.DSN)
		if err != nil {
			return fail(err)
		}
		db.SetLogger(a.logger)
		c.closers = append(c.closers, db.Close)
		c.checks["postgres"] = db.HealthCheck

		if cfg.Postgres.Migrate {
			if err := db.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("running migrations: %w", err))
			}
		}
		c.reports = store.NewReportRepository(db)
		sinks = append(sinks, c.reports)
	}

	if redisCache != nil {
		sinks = append(sinks, publisher.NewRedisStreamPublisher(redisCache.Client(), cfg.Redis.Stream, cfg.Redis.StreamMaxLen))
	}

	if cfg.Telegram.Token != "" {
		n, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.MinEV)
		if err != nil {
			return fail(err)
		}
		n.SetLogger(a.logger)
		sinks = append(sinks, n)
	}

	sinks = append(sinks, extra...)

	c.generator, err = service.NewGenerator(odds, preds, engine, cfg.Report.TimeZone,
		service.WithSinks(sinks...),
		service.WithLogger(a.logger),
	)
	if err != nil {
		return fail(err)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	a.logger.Info().
		Str("tz", cfg.Report.TimeZone).
		Str("policy", string(policy)).
		Strs("sinks", names).
		Msg("Report pipeline ready")

	return c, nil
}

// minEV is the telegram threshold as a decimal, shared with table output.
func (a *app) minEV() decimal.Decimal {
	return decimal.NewFromFloat(a.cfg.Telegram.MinEV)
}
