package reconciliation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }

func TestMergeCopiesFieldsAndLocalizes(t *testing.T) {
	pair := Pair{
		Odds: OddsQuote{
			GameID:    "abc123",
			StartTime: at(23, 10),
			HomeTeam:  "NY Yankees",
			AwayTeam:  "Boston Red Sox",
			HomeOdds:  intp(-150),
			AwayOdds:  intp(130),
		},
		Prediction: Prediction{
			Time:       at(23, 5),
			HomeTeam:   "Yankees",
			AwayTeam:   "Red Sox",
			HomeWinPct: floatp(55.0),
			AwayWinPct: floatp(45.0),
		},
	}

	rec, err := Merge(pair, "America/New_York")
	require.NoError(t, err)

	assert.Equal(t, "abc123", rec.GameID)
	assert.Equal(t, "2025-04-21 19:10:00", rec.LocalStartTime)
	assert.Equal(t, "NY Yankees", rec.HomeTeam)
	assert.Equal(t, "Boston Red Sox", rec.AwayTeam)
	assert.Equal(t, -150, *rec.HomeOdds)
	assert.Equal(t, 130, *rec.AwayOdds)
	assert.Equal(t, 55.0, *rec.HomeWinPct)
	assert.Equal(t, 45.0, *rec.AwayWinPct)

	// the record owns its values
	*pair.Odds.HomeOdds = -999
	*pair.Prediction.HomeWinPct = 1
	assert.Equal(t, -150, *rec.HomeOdds)
	assert.Equal(t, 55.0, *rec.HomeWinPct)
}

func TestMergeOtherZones(t *testing.T) {
	pair := Pair{Odds: OddsQuote{StartTime: at(23, 10)}}

	tests := []struct {
		zone string
		want string
	}{
		{"UTC", "2025-04-21 23:10:00"},
		{"America/Los_Angeles", "2025-04-21 16:10:00"},
		{"Asia/Tokyo", "2025-04-22 08:10:00"},
	}

	for _, tt := range tests {
		rec, err := Merge(pair, tt.zone)
		require.NoError(t, err, tt.zone)
		assert.Equal(t, tt.want, rec.LocalStartTime, tt.zone)
	}
}

func TestMergeKeepsNulls(t *testing.T) {
	pair := Pair{
		Odds:       OddsQuote{GameID: "g", StartTime: at(1, 0), HomeTeam: "A B", AwayTeam: "C D"},
		Prediction: Prediction{Time: at(1, 0), HomeTeam: "B", AwayTeam: "D"},
	}

	rec, err := Merge(pair, "UTC")
	require.NoError(t, err)
	assert.Nil(t, rec.HomeOdds)
	assert.Nil(t, rec.AwayOdds)
	assert.Nil(t, rec.HomeWinPct)
	assert.Nil(t, rec.AwayWinPct)
}

func TestMergeUnknownZone(t *testing.T) {
	for _, zone := range []string{"", "Local", "Mars/Olympus_Mons", "EST5EDT6"} {
		_, err := Merge(Pair{}, zone)
		require.Error(t, err, zone)
		assert.True(t, errors.Is(err, ErrTimeZone), zone)

		var tze *TimeZoneError
		require.True(t, errors.As(err, &tze))
		assert.Equal(t, zone, tze.Zone)
	}
}
