package oddsapi

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/reconciliation"
)

const marketH2H = "h2h"

// ParseEvents converts API events into raw odds records. An event whose
// commence time cannot be read is logged and dropped; missing prices stay nil.
func ParseEvents(events []Event, logger *zerolog.Logger) []reconciliation.RawOdds {
	out := make([]reconciliation.RawOdds, 0, len(events))
	for _, ev := range events {
		rec, err := ParseEvent(ev)
		if err != nil {
			logger.Warn().Err(err).Str("game_id", ev.ID).Msg("Error parsing game data")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ParseEvent extracts the moneyline for the home and away team. When several
// books quote h2h the last one read wins.
func ParseEvent(ev Event) (reconciliation.RawOdds, error) {
	start, err := reconciliation.ToInstant(ev.CommenceTime)
	if err != nil {
		return reconciliation.RawOdds{}, fmt.Errorf("commence_time: %w", err)
	}

	rec := reconciliation.RawOdds{
		GameID:    ev.ID,
		StartTime: start.Format(time.RFC3339),
		HomeTeam:  ev.HomeTeam,
		AwayTeam:  ev.AwayTeam,
	}

	for _, book := range ev.Bookmakers {
		for _, m := range book.Markets {
			if m.Key != marketH2H {
				continue
			}
			for _, o := range m.Outcomes {
				switch o.Name {
				case ev.HomeTeam:
					rec.HomeOdds = american(o.Price)
				case ev.AwayTeam:
					rec.AwayOdds = american(o.Price)
				}
			}
		}
	}

	return rec, nil
}

func american(price float64) *int {
	v := int(math.Round(price))
	return &v
}

// FilterEarliestDate keeps the events whose commence time falls on the
// earliest UTC calendar date present. Events with unreadable times are
// dropped.
func FilterEarliestDate(events []Event) []Event {
	type day struct {
		y int
		m time.Month
		d int
	}

	var (
		earliest time.Time
		days     = make([]day, len(events))
		ok       = make([]bool, len(events))
	)

	for i, ev := range events {
		t, err := reconciliation.ToInstant(ev.CommenceTime)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		days[i], ok[i] = day{y, m, d}, true

		midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if earliest.IsZero() || midnight.Before(earliest) {
			earliest = midnight
		}
	}

	if earliest.IsZero() {
		return nil
	}

	y, m, d := earliest.Date()
	want := day{y, m, d}

	var out []Event
	for i, ev := range events {
		if ok[i] && days[i] == want {
			out = append(out, ev)
		}
	}
	return out
}
