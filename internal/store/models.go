package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/sibyl/internal/reconciliation"
)

// ReportRun is one row of report_runs
type ReportRun struct {
	RunID              uuid.UUID `db:"run_id"`
	Name               string    `db:"name"`
	GeneratedAt        time.Time `db:"generated_at"`
	TimeZone           string    `db:"time_zone"`
	OddsIn             int       `db:"odds_in"`
	PredictionsIn      int       `db:"predictions_in"`
	OddsSkipped        int       `db:"odds_skipped"`
	PredictionsSkipped int       `db:"predictions_skipped"`
	Pairs              int       `db:"pairs"`
	Ambiguous          int       `db:"ambiguous"`
}

// ReportGame is one row of report_games
type ReportGame struct {
	RunID          uuid.UUID       `db:"run_id"`
	Position       int             `db:"position"`
	GameID         string          `db:"game_id"`
	LocalStartTime string          `db:"local_start_time"`
	HomeTeam       string          `db:"home_team"`
	AwayTeam       string          `db:"away_team"`
	HomeOdds       sql.NullInt64   `db:"home_odds"`
	AwayOdds       sql.NullInt64   `db:"away_odds"`
	HomeWinPct     sql.NullFloat64 `db:"home_win_pct"`
	AwayWinPct     sql.NullFloat64 `db:"away_win_pct"`
}

func gameFromRecord(runID uuid.UUID, pos int, rec reconciliation.MergedRecord) ReportGame {
	g := ReportGame{
		RunID:          runID,
		Position:       pos,
		GameID:         rec.GameID,
		LocalStartTime: rec.LocalStartTime,
		HomeTeam:       rec.HomeTeam,
		AwayTeam:       rec.AwayTeam,
	}
	if rec.HomeOdds != nil {
		g.HomeOdds = sql.NullInt64{Int64: int64(*rec.HomeOdds), Valid: true}
	}
	if rec.AwayOdds != nil {
		g.AwayOdds = sql.NullInt64{Int64: int64(*rec.AwayOdds), Valid: true}
	}
	if rec.HomeWinPct != nil {
		g.HomeWinPct = sql.NullFloat64{Float64: *rec.HomeWinPct, Valid: true}
	}
	if rec.AwayWinPct != nil {
		g.AwayWinPct = sql.NullFloat64{Float64: *rec.AwayWinPct, Valid: true}
	}
	return g
}

// Record converts the row back to a merged record.
func (g ReportGame) Record() reconciliation.MergedRecord {
	rec := reconciliation.MergedRecord{
		GameID:         g.GameID,
		LocalStartTime: g.LocalStartTime,
		HomeTeam:       g.HomeTeam,
		AwayTeam:       g.AwayTeam,
	}
	if g.HomeOdds.Valid {
		v := int(g.HomeOdds.Int64)
		rec.HomeOdds = &v
	}
	if g.AwayOdds.Valid {
		v := int(g.AwayOdds.Int64)
		rec.AwayOdds = &v
	}
	if g.HomeWinPct.Valid {
		v := g.HomeWinPct.Float64
		rec.HomeWinPct = &v
	}
	if g.AwayWinPct.Valid {
		v := g.AwayWinPct.Float64
		rec.AwayWinPct = &v
	}
	return rec
}
