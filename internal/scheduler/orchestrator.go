// Package scheduler runs report generation on a daily cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/report"
	"github.com/fortuna/sibyl/internal/service"
)

// ErrRunInProgress is returned by Trigger while another run is still going.
var ErrRunInProgress = errors.New("a report run is already in progress")

// Runner produces one report.
type Runner interface {
	Generate(ctx context.Context, opts service.GenerateOptions) (*report.Report, error)
}

// Config holds scheduler configuration
type Config struct {
	Spec       string         // Default: "0 11 * * *"
	Location   *time.Location // Zone the spec is read in. Default: UTC
	RunOnStart bool           // Default: false
	MaxRetries int            // Default: 3
	RetryDelay time.Duration  // Default: 5m
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Spec:       "0 11 * * *",
		Location:   time.UTC,
		MaxRetries: 3,
		RetryDelay: 5 * time.Minute,
	}
}

// Status is a snapshot of scheduler state.
type Status struct {
	Spec        string    `json:"spec"`
	TimeZone    string    `json:"time_zone"`
	Running     bool      `json:"running"`
	NextRun     time.Time `json:"next_run,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastTrigger string    `json:"last_trigger,omitempty"`
	LastReport  string    `json:"last_report,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Attempts    int       `json:"attempts"`
}

// Orchestrator owns the cron loop and the retry policy around each run.
type Orchestrator struct {
	runner Runner
	config *Config
	cron   *cron.Cron
	entry  cron.EntryID
	logger *zerolog.Logger

	runMu sync.Mutex

	mu     sync.RWMutex
	status Status
	ctx    context.Context
	cancel context.CancelFunc

	// base outlives any one Start and is cancelled by Stop; background
	// runs hang off it.
	base     context.Context
	stopBase context.CancelFunc
}

// NewOrchestrator parses the schedule; an invalid spec is an error here
// rather than a silent no-op later.
func NewOrchestrator(runner Runner, config *Config, logger *zerolog.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if logger == nil {
		logger = logging.Default()
	}

	o := &Orchestrator{
		runner: runner,
		config: config,
		logger: logger,
		cron:   cron.New(cron.WithLocation(config.Location)),
		status: Status{Spec: config.Spec, TimeZone: config.Location.String()},
	}
	o.base, o.stopBase = context.WithCancel(context.Background())

	id, err := o.cron.AddFunc(config.Spec, o.scheduledRun)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", config.Spec, err)
	}
	o.entry = id
	return o, nil
}

// Start runs the cron loop until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(o.base, cancel)
	o.mu.Lock()
	o.ctx, o.cancel = ctx, cancel
	o.mu.Unlock()

	o.cron.Start()
	o.logger.Info().
		Str("spec", o.config.Spec).
		Str("tz", o.config.Location.String()).
		Time("next_run", o.cron.Entry(o.entry).Next).
		Msg("Scheduler started")

	if o.config.RunOnStart {
		go o.run(ctx, "startup")
	}

	<-ctx.Done()

	stopped := o.cron.Stop()
	<-stopped.Done()
	o.logger.Info().Msg("Scheduler stopped")
}

// Stop cancels Start and any background run. Runs in flight see their
// context cancelled.
func (o *Orchestrator) Stop() {
	o.stopBase()
}

// runContext is Start's context once the scheduler is running, and the
// orchestrator's own context before that.
func (o *Orchestrator) runContext() context.Context {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.ctx != nil {
		return o.ctx
	}
	return o.base
}

// scheduledRun is the cron callback. It runs under Start's context so a
// shutdown interrupts retries.
func (o *Orchestrator) scheduledRun() {
	o.run(o.runContext(), "cron")
}

func (o *Orchestrator) run(ctx context.Context, trigger string) {
	if _, err := o.Trigger(ctx, trigger); err != nil && !errors.Is(err, ErrRunInProgress) {
		o.logger.Error().Err(err).Str("trigger", trigger).Msg("Scheduled report run failed")
	}
}

// Trigger runs the report now, retrying failures MaxRetries times with
// RetryDelay between attempts. Only one run may be in flight.
func (o *Orchestrator) Trigger(ctx context.Context, trigger string) (*report.Report, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()
	return o.attempt(ctx, trigger)
}

// TriggerAsync claims the run slot and generates the report in the
// background, so callers need not wait out the retries. The run stops
// with Stop, not with the caller. Results land in GetStatus.
func (o *Orchestrator) TriggerAsync(trigger string) error {
	if !o.runMu.TryLock() {
		return ErrRunInProgress
	}

	o.mu.Lock()
	o.status.Running = true
	o.status.LastTrigger = trigger
	o.mu.Unlock()

	ctx := o.runContext()
	go func() {
		defer o.runMu.Unlock()
		if _, err := o.attempt(ctx, trigger); err != nil {
			o.logger.Error().Err(err).Str("trigger", trigger).Msg("Report run failed")
		}
	}()
	return nil
}

// attempt is the body of a run; the caller holds runMu.
func (o *Orchestrator) attempt(ctx context.Context, trigger string) (*report.Report, error) {
	o.mu.Lock()
	o.status.Running = true
	o.status.LastTrigger = trigger
	o.mu.Unlock()

	logger := o.logger.With().Str("trigger", trigger).Logger()

	var (
		rep     *report.Report
		err     error
		attempt int
	)
retry:
	for attempt = 1; ; attempt++ {
		rep, err = o.runner.Generate(ctx, service.GenerateOptions{})
		if err == nil {
			break
		}

		logger.Warn().Err(err).Int("attempt", attempt).Int("max", o.config.MaxRetries).Msg("Report attempt failed")
		if attempt >= o.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(o.config.RetryDelay):
		}
	}

	o.mu.Lock()
	o.status.Running = false
	o.status.LastRun = time.Now().UTC()
	o.status.Attempts = attempt
	o.status.LastError = ""
	if err != nil {
		o.status.LastError = err.Error()
	} else {
		o.status.LastReport = rep.Name
	}
	o.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("report run failed after %d attempt(s): %w", attempt, err)
	}

	logger.Info().Str("report", rep.Name).Int("attempts", attempt).Msg("Report run complete")
	return rep, nil
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() Status {
	o.mu.RLock()
	s := o.status
	o.mu.RUnlock()

	s.NextRun = o.cron.Entry(o.entry).Next
	return s
}
