package reconciliation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
)

// Engine reconciles an odds list and a predictions list into merged records.
// It performs no I/O; each Reconcile call is independent of the others.
type Engine struct {
	identity IdentityFunc
	policy   MatchPolicy
	logger   *zerolog.Logger

	mu      sync.Mutex
	metrics Metrics
}

// Metrics tracks cumulative reconciliation statistics
type Metrics struct {
	TotalReconciliations int
	OddsSkipped          int
	PredictionsSkipped   int
	Matched              int
	Ambiguous            int
	LastReconciliation   time.Time
}

// Stats describes a single Reconcile call.
type Stats struct {
	OddsIn             int `json:"odds_in"`
	PredictionsIn      int `json:"predictions_in"`
	OddsSkipped        int `json:"odds_skipped"`
	PredictionsSkipped int `json:"predictions_skipped"`
	Pairs              int `json:"pairs"`
	Ambiguous          int `json:"ambiguous"`
}

// Result is the outcome of one Reconcile call. Records is freshly
// allocated and owned by the caller.
type Result struct {
	Records   []MergedRecord
	Skipped   []*RecordError
	Ambiguous []*AmbiguousMatchError
	Stats     Stats
}

// Option configures an Engine
type Option func(*Engine)

// WithIdentity replaces the team identity function (default SuffixKey).
func WithIdentity(fn IdentityFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.identity = fn
		}
	}
}

// WithMatchPolicy sets the multiplicity policy (default AllowMultiMatch).
func WithMatchPolicy(p MatchPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithLogger sets the logger used for per-record diagnostics.
func WithLogger(l *zerolog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a new reconciliation engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		identity: SuffixKey,
		policy:   AllowMultiMatch,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile normalizes both lists, matches them and merges every pair with
// start times shown in timeZone. Malformed records are skipped and listed in
// Result.Skipped. The only error is an unknown timeZone, which aborts the call
// before any work is done.
func (e *Engine) Reconcile(odds []RawOdds, predictions []RawPrediction, timeZone string) (*Result, error) {
	merger, err := NewMerger(timeZone)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Stats: Stats{
			OddsIn:        len(odds),
			PredictionsIn: len(predictions),
		},
	}

	// Match sees only the records that normalized; inputPos maps its
	// positions back to the caller's lists.
	inputPos := map[Source][]int{}

	quotes := make([]OddsQuote, 0, len(odds))
	for i, raw := range odds {
		q, err := e.normalizeOdds(raw)
		if err != nil {
			e.skip(result, SourceOdds, i, err)
			continue
		}
		quotes = append(quotes, q)
		inputPos[SourceOdds] = append(inputPos[SourceOdds], i)
	}

	preds := make([]Prediction, 0, len(predictions))
	for i, raw := range predictions {
		p, err := e.normalizePrediction(raw)
		if err != nil {
			e.skip(result, SourcePredictions, i, err)
			continue
		}
		preds = append(preds, p)
		inputPos[SourcePredictions] = append(inputPos[SourcePredictions], i)
	}

	matched := NewMatcher(e.identity, e.policy).Match(quotes, preds)
	for _, re := range matched.Skipped {
		e.skip(result, re.Source, inputPos[re.Source][re.Index], re.Err)
	}
	for _, amb := range matched.Ambiguous {
		other := SourcePredictions
		if amb.Source == SourcePredictions {
			other = SourceOdds
		}
		amb.Index = inputPos[amb.Source][amb.Index]
		for j, c := range amb.Candidates {
			amb.Candidates[j] = inputPos[other][c]
		}
		e.logger.Warn().
			Str("source", string(amb.Source)).
			Int("index", amb.Index).
			Str("key", amb.Key).
			Ints("candidates", amb.Candidates).
			Msg("Ambiguous match withheld")
	}

	result.Ambiguous = matched.Ambiguous
	result.Records = make([]MergedRecord, 0, len(matched.Pairs))
	for _, p := range matched.Pairs {
		result.Records = append(result.Records, merger.Merge(p))
	}

	result.Stats.Pairs = len(matched.Pairs)
	result.Stats.Ambiguous = len(matched.Ambiguous)

	e.record(result.Stats)

	e.logger.Debug().
		Int("odds", result.Stats.OddsIn).
		Int("predictions", result.Stats.PredictionsIn).
		Int("merged", len(result.Records)).
		Int("skipped", len(result.Skipped)).
		Msg("Reconciliation complete")

	return result, nil
}

func (e *Engine) normalizeOdds(raw RawOdds) (OddsQuote, error) {
	start, err := ToInstant(raw.StartTime)
	if err != nil {
		return OddsQuote{}, err
	}
	if err := e.checkTeams(raw.HomeTeam, raw.AwayTeam); err != nil {
		return OddsQuote{}, err
	}

	return OddsQuote{
		GameID:    raw.GameID,
		StartTime: start,
		HomeTeam:  raw.HomeTeam,
		AwayTeam:  raw.AwayTeam,
		HomeOdds:  copyInt(raw.HomeOdds),
		AwayOdds:  copyInt(raw.AwayOdds),
	}, nil
}

func (e *Engine) normalizePrediction(raw RawPrediction) (Prediction, error) {
	t, err := ToInstant(raw.Time)
	if err != nil {
		return Prediction{}, err
	}
	if err := e.checkTeams(raw.HomeTeam, raw.AwayTeam); err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Time:       t,
		HomeTeam:   raw.HomeTeam,
		AwayTeam:   raw.AwayTeam,
		HomeWinPct: copyFloat(raw.HomeWinPct),
		AwayWinPct: copyFloat(raw.AwayWinPct),
	}, nil
}

func (e *Engine) checkTeams(home, away string) error {
	if _, err := e.identity(home); err != nil {
		return err
	}
	_, err := e.identity(away)
	return err
}

func (e *Engine) skip(result *Result, src Source, index int, err error) {
	result.Skipped = append(result.Skipped, &RecordError{Source: src, Index: index, Err: err})
	switch src {
	case SourceOdds:
		result.Stats.OddsSkipped++
	case SourcePredictions:
		result.Stats.PredictionsSkipped++
	}

	e.logger.Warn().
		Err(err).
		Str("source", string(src)).
		Int("index", index).
		Msg("Skipping malformed record")
}

func (e *Engine) record(s Stats) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.TotalReconciliations++
	e.metrics.OddsSkipped += s.OddsSkipped
	e.metrics.PredictionsSkipped += s.PredictionsSkipped
	e.metrics.Matched += s.Pairs
	e.metrics.Ambiguous += s.Ambiguous
	e.metrics.LastReconciliation = time.Now()
}

// Metrics returns a snapshot of the cumulative metrics
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// ResetMetrics clears all metrics
func (e *Engine) ResetMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = Metrics{}
}
