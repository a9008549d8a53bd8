package reconciliation

import (
	"strings"
	"time"
)

// LocalTimeLayout is the presentation format of MergedRecord.LocalStartTime.
const LocalTimeLayout = "2006-01-02 15:04:05"

// Merger assembles merged records with start times shown in one zone.
type Merger struct {
	loc *time.Location
}

// NewMerger loads the presentation zone. Empty and "Local" are rejected so
// output never depends on the host's zone settings.
func NewMerger(timeZone string) (*Merger, error) {
	loc, err := LoadZone(timeZone)
	if err != nil {
		return nil, err
	}
	return &Merger{loc: loc}, nil
}

// LoadZone resolves an IANA zone identifier such as "America/New_York".
func LoadZone(timeZone string) (*time.Location, error) {
	name := strings.TrimSpace(timeZone)
	if name == "" || name == "Local" {
		return nil, &TimeZoneError{Zone: timeZone}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &TimeZoneError{Zone: timeZone, Err: err}
	}
	return loc, nil
}

// Location returns the presentation zone
func (m *Merger) Location() *time.Location {
	return m.loc
}

// Merge builds the record for one pair. Identity and odds come from the
// quote, percentages from the prediction; absent values stay nil.
func (m *Merger) Merge(p Pair) MergedRecord {
	return MergedRecord{
		GameID:         p.Odds.GameID,
		LocalStartTime: p.Odds.StartTime.In(m.loc).Format(LocalTimeLayout),
		HomeTeam:       p.Odds.HomeTeam,
		AwayTeam:       p.Odds.AwayTeam,
		HomeOdds:       copyInt(p.Odds.HomeOdds),
		AwayOdds:       copyInt(p.Odds.AwayOdds),
		HomeWinPct:     copyFloat(p.Prediction.HomeWinPct),
		AwayWinPct:     copyFloat(p.Prediction.AwayWinPct),
	}
}

// Merge is the one-shot form: it fails only on an unknown zone.
func Merge(p Pair, timeZone string) (MergedRecord, error) {
	m, err := NewMerger(timeZone)
	if err != nil {
		return MergedRecord{}, err
	}
	return m.Merge(p), nil
}
