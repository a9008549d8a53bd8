package reconciliation

import (
	"fmt"
	"time"
)

// RawOdds is one event as produced by the odds fetcher, before normalization.
type RawOdds struct {
	GameID    string `json:"game_id"`
	StartTime string `json:"start_time"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeOdds  *int   `json:"home_odds"`
	AwayOdds  *int   `json:"away_odds"`
}

// RawPrediction is one row as produced by the predictions scraper.
type RawPrediction struct {
	Time       string   `json:"time"`
	HomeTeam   string   `json:"home_team"`
	AwayTeam   string   `json:"away_team"`
	HomeWinPct *float64 `json:"home_win_pct"`
	AwayWinPct *float64 `json:"away_win_pct"`
}

// OddsQuote is a normalized market quote. StartTime is always UTC.
// HomeOdds and AwayOdds are American odds; nil means no quote was posted.
type OddsQuote struct {
	GameID    string
	StartTime time.Time
	HomeTeam  string
	AwayTeam  string
	HomeOdds  *int
	AwayOdds  *int
}

// Prediction is a normalized model prediction. Time is always UTC.
// When both percentages are present they sum to 100.
type Prediction struct {
	Time       time.Time
	HomeTeam   string
	AwayTeam   string
	HomeWinPct *float64
	AwayWinPct *float64
}

// Pair is one odds quote matched with one prediction.
type Pair struct {
	Odds       OddsQuote
	Prediction Prediction
}

// MergedRecord combines a quote and a prediction for reporting.
// Every optional field is an owned copy; nothing aliases the inputs.
type MergedRecord struct {
	GameID         string   `json:"game_id"`
	LocalStartTime string   `json:"local_start_time"`
	HomeTeam       string   `json:"home_team"`
	AwayTeam       string   `json:"away_team"`
	HomeOdds       *int     `json:"home_odds"`
	AwayOdds       *int     `json:"away_odds"`
	HomeWinPct     *float64 `json:"home_win_pct"`
	AwayWinPct     *float64 `json:"away_win_pct"`
}

// HourBucket is the coarse temporal matching key: UTC calendar date and hour.
type HourBucket struct {
	Year  int
	Month time.Month
	Day   int
	Hour  int
}

// String renders the bucket as 2006-01-02T15.
func (b HourBucket) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d", b.Year, int(b.Month), b.Day, b.Hour)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
