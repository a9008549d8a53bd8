package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/sibyl/internal/api/rest"
	"github.com/fortuna/sibyl/internal/api/websocket"
	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/scheduler"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, REST API and websocket feed",
		Long: `Serve generates the report every day on the configured cron schedule
(in the report time zone), serves reports over HTTP and pushes each new
report to websocket clients on /ws/reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("run-on-start", false, "generate a report immediately on startup")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(a.logger)
	go hub.Run(hubCtx)
	ws := websocket.NewServer(hub, cfg.Server.AllowedOrigins, a.logger)

	c, err := a.build(ctx, ws)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Closing resources")
		}
	}()

	loc, err := reconciliation.LoadZone(cfg.Report.TimeZone)
	if err != nil {
		return err
	}
	sched, err := scheduler.NewOrchestrator(c.generator, &scheduler.Config{
		Spec:       cfg.Schedule.Cron,
		Location:   loc,
		RunOnStart: cfg.Schedule.RunOnStart,
		MaxRetries: cfg.Schedule.MaxRetries,
		RetryDelay: cfg.Schedule.RetryDelay,
	}, a.logger)
	if err != nil {
		return err
	}

	schedDone := make(chan struct{})
	if cfg.Schedule.Enabled {
		go func() {
			defer close(schedDone)
			sched.Start(ctx)
		}()
	} else {
		close(schedDone)
		a.logger.Info().Msg("Scheduler disabled; reports run only on request")
	}

	deps := rest.Deps{
		Latest:  c.generator,
		Trigger: sched,
		Checks:  c.checks,
		Status: func() any {
			status := map[string]any{
				"scheduler": sched.GetStatus(),
				"generator": c.generator.Status(),
				"engine":    c.generator.Metrics(),
				"clients":   hub.ClientCount(),
			}
			if c.odds != nil {
				status["odds_api"] = c.odds.RateLimits()
			}
			return status
		},
	}
	if c.reports != nil {
		deps.Store = c.reports
	}

	rest.Version = version
	srv := rest.NewServer(rest.Config{Addr: cfg.Server.Addr, AllowedOrigins: cfg.Server.AllowedOrigins}, rest.NewHandler(deps), a.logger)
	srv.Handle("/ws/reports", ws.HandleReports)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	a.logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("version", version).
		Msg("sibyl started")

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down")
	case err = <-errCh:
		if err != nil {
			a.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Warn().Err(serr).Msg("HTTP shutdown")
	}

	select {
	case <-schedDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		a.logger.Warn().Msg("Scheduler did not stop in time")
	}

	a.logger.Info().Msg("sibyl stopped")
	return err
}
