package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/report"
)

// ErrNotFound is returned when no report has the requested name.
var ErrNotFound = errors.New("report not found")

// ReportRepository handles report data access
type ReportRepository struct {
	db *Database
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *Database) *ReportRepository {
	return &ReportRepository{db: db}
}

// Name implements report.Sink.
func (r *ReportRepository) Name() string { return "postgres" }

// Write implements report.Sink.
func (r *ReportRepository) Write(ctx context.Context, rep *report.Report) error {
	return r.ReplaceReport(ctx, rep)
}

// ReplaceReport stores rep, deleting any earlier report with the same name
// in the same transaction.
func (r *ReportRepository) ReplaceReport(ctx context.Context, rep *report.Report) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_runs WHERE name = $1`, rep.Name); err != nil {
		return fmt.Errorf("deleting report %s: %w", rep.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_runs (run_id, name, generated_at, time_zone,
			odds_in, predictions_in, odds_skipped, predictions_skipped, pairs, ambiguous)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rep.RunID.String(), rep.Name, rep.GeneratedAt, rep.TimeZone,
		rep.Stats.OddsIn, rep.Stats.PredictionsIn, rep.Stats.OddsSkipped,
		rep.Stats.PredictionsSkipped, rep.Stats.Pairs, rep.Stats.Ambiguous,
	)
	if err != nil {
		return fmt.Errorf("inserting report run: %w", err)
	}

	for i, rec := range rep.Records {
		g := gameFromRecord(rep.RunID, i, rec)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO report_games (run_id, position, game_id, local_start_time,
				home_team, away_team, home_odds, away_odds, home_win_pct, away_win_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			g.RunID.String(), g.Position, g.GameID, g.LocalStartTime,
			g.HomeTeam, g.AwayTeam, g.HomeOdds, g.AwayOdds, g.HomeWinPct, g.AwayWinPct,
		)
		if err != nil {
			return fmt.Errorf("inserting game %s: %w", rec.GameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing report: %w", err)
	}

	r.db.logger.Info().
		Str("run_id", rep.RunID.String()).
		Str("name", rep.Name).
		Int("games", len(rep.Records)).
		Msg("Report stored")
	return nil
}

// GetReport loads the report with the given name
func (r *ReportRepository) GetReport(ctx context.Context, name string) (*report.Report, error) {
	var run ReportRun
	err := r.db.DB().QueryRowContext(ctx, `
		SELECT run_id, name, generated_at, time_zone,
			odds_in, predictions_in, odds_skipped, predictions_skipped, pairs, ambiguous
		FROM report_runs
		WHERE name = $1
	`, name).Scan(
		&run.RunID, &run.Name, &run.GeneratedAt, &run.TimeZone,
		&run.OddsIn, &run.PredictionsIn, &run.OddsSkipped, &run.PredictionsSkipped,
		&run.Pairs, &run.Ambiguous,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}

	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT run_id, position, game_id, local_start_time, home_team, away_team,
			home_odds, away_odds, home_win_pct, away_win_pct
		FROM report_games
		WHERE run_id = $1
		ORDER BY position
	`, run.RunID.String())
	if err != nil {
		return nil, fmt.Errorf("querying report games: %w", err)
	}
	defer rows.Close()

	rep := &report.Report{
		RunID:       run.RunID,
		Name:        run.Name,
		GeneratedAt: run.GeneratedAt.UTC(),
		TimeZone:    run.TimeZone,
		Records:     []reconciliation.MergedRecord{},
		Stats: reconciliation.Stats{
			OddsIn:             run.OddsIn,
			PredictionsIn:      run.PredictionsIn,
			OddsSkipped:        run.OddsSkipped,
			PredictionsSkipped: run.PredictionsSkipped,
			Pairs:              run.Pairs,
			Ambiguous:          run.Ambiguous,
		},
	}

	for rows.Next() {
		var g ReportGame
		if err := rows.Scan(
			&g.RunID, &g.Position, &g.GameID, &g.LocalStartTime, &g.HomeTeam, &g.AwayTeam,
			&g.HomeOdds, &g.AwayOdds, &g.HomeWinPct, &g.AwayWinPct,
		); err != nil {
			return nil, fmt.Errorf("scanning report game: %w", err)
		}
		rep.Records = append(rep.Records, g.Record())
	}

	return rep, rows.Err()
}

// LatestReportName returns the name of the most recently generated report
func (r *ReportRepository) LatestReportName(ctx context.Context) (string, error) {
	var name string
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT name FROM report_runs ORDER BY generated_at DESC LIMIT 1`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying latest report: %w", err)
	}
	return name, nil
}

// LatestReport loads the most recently generated report
func (r *ReportRepository) LatestReport(ctx context.Context) (*report.Report, error) {
	name, err := r.LatestReportName(ctx)
	if err != nil {
		return nil, err
	}
	return r.GetReport(ctx, name)
}
