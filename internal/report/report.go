// Package report turns merged records into the daily betting sheet.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fortuna/sibyl/internal/oddsmath"
	"github.com/fortuna/sibyl/internal/reconciliation"
)

// NameLayout names a report after its date.
const NameLayout = "2006-01-02"

// Report is one generation run: the merged games for a day.
type Report struct {
	RunID       uuid.UUID                     `json:"run_id"`
	Name        string                        `json:"name"`
	GeneratedAt time.Time                     `json:"generated_at"`
	TimeZone    string                        `json:"time_zone"`
	Records     []reconciliation.MergedRecord `json:"records"`
	Stats       reconciliation.Stats          `json:"stats"`
}

// New builds a report. An empty name defaults to the date of now in loc.
func New(name string, now time.Time, loc *time.Location, res *reconciliation.Result) *Report {
	if name == "" {
		name = now.In(loc).Format(NameLayout)
	}

	r := &Report{
		RunID:       uuid.New(),
		Name:        name,
		GeneratedAt: now.UTC(),
		TimeZone:    loc.String(),
		Records:     []reconciliation.MergedRecord{},
	}
	if res != nil {
		r.Records = res.Records
		r.Stats = res.Stats
	}
	return r
}

// Rows lays the report out as the sheet expects.
func (r *Report) Rows() []Row {
	return Rows(r.Records)
}

// Sink receives finished reports.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *Report) error
}

// Side says which team a row describes.
type Side string

const (
	SideAway Side = "away"
	SideHome Side = "home"
)

// Row is one team's line in the sheet. GameID and StartTime are only set on
// the first (away) row of each game.
type Row struct {
	GameID     string              `json:"game_id,omitempty"`
	StartTime  string              `json:"start_time,omitempty"`
	Side       Side                `json:"side"`
	Team       string              `json:"team"`
	Odds       *int                `json:"odds"`
	WinPct     *float64            `json:"win_pct"`
	ImpliedPct decimal.NullDecimal `json:"implied_pct"`
	EV         decimal.NullDecimal `json:"ev"`
}

// PositiveEV reports whether the model finds value on this side.
func (r Row) PositiveEV() bool {
	return r.EV.Valid && r.EV.Decimal.IsPositive()
}

// Rows expands each record into an away row followed by a home row.
func Rows(records []reconciliation.MergedRecord) []Row {
	rows := make([]Row, 0, 2*len(records))
	for _, rec := range records {
		away := newRow(SideAway, rec.AwayTeam, rec.AwayOdds, rec.AwayWinPct)
		away.GameID = rec.GameID
		away.StartTime = rec.LocalStartTime

		rows = append(rows, away, newRow(SideHome, rec.HomeTeam, rec.HomeOdds, rec.HomeWinPct))
	}
	return rows
}

func newRow(side Side, team string, odds *int, winPct *float64) Row {
	row := Row{Side: side, Team: team, Odds: odds, WinPct: winPct}
	if odds == nil {
		return row
	}

	if p, err := oddsmath.ImpliedProbability(*odds); err == nil {
		row.ImpliedPct = decimal.NewNullDecimal(p.Mul(decimal.NewFromInt(100)).Round(2))
	}
	if winPct != nil {
		if ev, err := oddsmath.ExpectedValue(*odds, *winPct); err == nil {
			row.EV = decimal.NewNullDecimal(ev.Round(2))
		}
	}
	return row
}
