package oddsapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/sibyl/internal/logging"
)

func TestParseEventIgnoresOtherMarkets(t *testing.T) {
	ev := Event{
		ID:           "g1",
		CommenceTime: "2025-04-21T23:10:00+00:00",
		HomeTeam:     "Chicago Cubs",
		AwayTeam:     "Milwaukee Brewers",
		Bookmakers: []Bookmaker{{
			Key: "draftkings",
			Markets: []Market{
				{Key: "spreads", Outcomes: []Outcome{{Name: "Chicago Cubs", Price: -110}}},
				{Key: "h2h", Outcomes: []Outcome{
					{Name: "Chicago Cubs", Price: -120},
					{Name: "Milwaukee Brewers", Price: 102},
					{Name: "Draw", Price: 900},
				}},
			},
		}},
	}

	rec, err := ParseEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-21T23:10:00Z", rec.StartTime)
	assert.Equal(t, -120, *rec.HomeOdds)
	assert.Equal(t, 102, *rec.AwayOdds)
}

func TestParseEventsSkipsBadTimes(t *testing.T) {
	events := []Event{
		{ID: "bad", CommenceTime: "", HomeTeam: "A", AwayTeam: "B"},
		{ID: "good", CommenceTime: "2025-04-21T23:10:00Z", HomeTeam: "A", AwayTeam: "B"},
	}

	got := ParseEvents(events, logging.Nop())
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].GameID)
}

func TestFilterEarliestDate(t *testing.T) {
	events := []Event{
		{ID: "d2", CommenceTime: "2025-04-22T17:05:00Z"},
		{ID: "d1a", CommenceTime: "2025-04-21T23:10:00Z"},
		{ID: "junk", CommenceTime: "soon"},
		{ID: "d1b", CommenceTime: "2025-04-21T17:35:00Z"},
	}

	got := FilterEarliestDate(events)
	require.Len(t, got, 2)
	assert.Equal(t, "d1a", got[0].ID)
	assert.Equal(t, "d1b", got[1].ID)

	assert.Empty(t, FilterEarliestDate(nil))
	assert.Empty(t, FilterEarliestDate([]Event{{ID: "junk", CommenceTime: "soon"}}))
}
