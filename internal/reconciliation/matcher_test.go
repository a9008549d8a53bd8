package reconciliation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 4, 21, hour, minute, 0, 0, time.UTC)
}

func quote(id, home, away string, start time.Time) OddsQuote {
	return OddsQuote{GameID: id, StartTime: start, HomeTeam: home, AwayTeam: away}
}

func prediction(home, away string, t time.Time) Prediction {
	return Prediction{Time: t, HomeTeam: home, AwayTeam: away}
}

func TestMatchSuffixAndHour(t *testing.T) {
	odds := []OddsQuote{quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10))}
	preds := []Prediction{prediction("Yankees", "Red Sox", at(23, 5))}

	res := NewMatcher(nil, "").Match(odds, preds)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "g1", res.Pairs[0].Odds.GameID)
	assert.Equal(t, "Yankees", res.Pairs[0].Prediction.HomeTeam)
	assert.Empty(t, res.Ambiguous)
	assert.Empty(t, res.Skipped)
}

func TestMatchDifferentHourBucket(t *testing.T) {
	odds := []OddsQuote{quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10))}
	preds := []Prediction{prediction("Yankees", "Red Sox", at(22, 59))}

	res := NewMatcher(nil, "").Match(odds, preds)
	assert.Empty(t, res.Pairs)
}

func TestMatchNeverPairsDifferentTeams(t *testing.T) {
	odds := []OddsQuote{
		quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10)),
		quote("g2", "Chicago Cubs", "Milwaukee Brewers", at(18, 20)),
	}
	preds := []Prediction{
		prediction("Red Sox", "Yankees", at(23, 5)),  // home/away swapped
		prediction("Yankees", "Blue Jays", at(23, 5)), // away differs
		prediction("Mets", "Red Sox", at(23, 5)),      // home differs
		prediction("Cubs", "Brewers", at(18, 5)),
	}

	res := NewMatcher(nil, "").Match(odds, preds)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "g2", res.Pairs[0].Odds.GameID)
	for _, p := range res.Pairs {
		oh, _ := SuffixKey(p.Odds.HomeTeam)
		ph, _ := SuffixKey(p.Prediction.HomeTeam)
		oa, _ := SuffixKey(p.Odds.AwayTeam)
		pa, _ := SuffixKey(p.Prediction.AwayTeam)
		assert.Equal(t, oh, ph)
		assert.Equal(t, oa, pa)
	}
}

func TestMatchUnmatchedIsSilent(t *testing.T) {
	odds := []OddsQuote{quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10))}
	preds := []Prediction{prediction("Dodgers", "Giants", at(2, 10))}

	res := NewMatcher(nil, "").Match(odds, preds)
	assert.Empty(t, res.Pairs)
	assert.Empty(t, res.Ambiguous)
	assert.Empty(t, res.Skipped)

	res = NewMatcher(nil, "").Match(nil, nil)
	assert.Empty(t, res.Pairs)
}

// Duplicated predictions are not deduplicated: each combination is a pair.
func TestMatchAllowsMultiplicity(t *testing.T) {
	odds := []OddsQuote{quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10))}
	p1 := prediction("Yankees", "Red Sox", at(23, 5))
	p2 := prediction("New York Yankees", "Boston Red Sox", at(23, 40))
	pct := 60.0
	p2.HomeWinPct = &pct

	res := NewMatcher(SuffixKey, AllowMultiMatch).Match(odds, []Prediction{p1, p2})

	require.Len(t, res.Pairs, 2)
	assert.Nil(t, res.Pairs[0].Prediction.HomeWinPct)
	assert.Equal(t, 60.0, *res.Pairs[1].Prediction.HomeWinPct)
	assert.Empty(t, res.Ambiguous)
}

func TestMatchOrderIsNestedScanOrder(t *testing.T) {
	odds := []OddsQuote{
		quote("late", "Seattle Mariners", "Houston Astros", at(2, 10)),
		quote("early", "NY Yankees", "Boston Red Sox", at(23, 10)),
		quote("doubleheader", "NY Yankees", "Boston Red Sox", at(23, 50)),
	}
	preds := []Prediction{
		prediction("Yankees", "Red Sox", at(23, 5)),
		prediction("Mariners", "Astros", at(2, 0)),
		prediction("Yankees", "Red Sox", at(23, 30)),
	}

	res := NewMatcher(nil, "").Match(odds, preds)

	var got []string
	for _, p := range res.Pairs {
		got = append(got, p.Odds.GameID+"@"+p.Prediction.Time.Format("15:04"))
	}
	assert.Equal(t, []string{
		"late@02:00",
		"early@23:05",
		"early@23:30",
		"doubleheader@23:05",
		"doubleheader@23:30",
	}, got)

	again := NewMatcher(nil, "").Match(odds, preds)
	assert.Equal(t, res, again)
}

func TestMatchRequireUnique(t *testing.T) {
	odds := []OddsQuote{
		quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10)),
		quote("g2", "Chicago Cubs", "Milwaukee Brewers", at(18, 20)),
	}
	preds := []Prediction{
		prediction("Yankees", "Red Sox", at(23, 5)),
		prediction("Yankees", "Red Sox", at(23, 15)),
		prediction("Cubs", "Brewers", at(18, 5)),
	}

	res := NewMatcher(nil, RequireUniqueMatch).Match(odds, preds)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "g2", res.Pairs[0].Odds.GameID)

	require.Len(t, res.Ambiguous, 1)
	amb := res.Ambiguous[0]
	assert.Equal(t, SourceOdds, amb.Source)
	assert.Equal(t, 0, amb.Index)
	assert.Equal(t, []int{0, 1}, amb.Candidates)
	assert.True(t, errors.Is(amb, ErrAmbiguousMatch))
}

func TestMatchRequireUniqueContestedPrediction(t *testing.T) {
	odds := []OddsQuote{
		quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10)),
		quote("g1-dup", "New York Yankees", "Red Sox", at(23, 20)),
	}
	preds := []Prediction{prediction("Yankees", "Red Sox", at(23, 5))}

	res := NewMatcher(nil, RequireUniqueMatch).Match(odds, preds)

	assert.Empty(t, res.Pairs)
	require.Len(t, res.Ambiguous, 1)
	assert.Equal(t, SourcePredictions, res.Ambiguous[0].Source)
	assert.Equal(t, []int{0, 1}, res.Ambiguous[0].Candidates)

	// the default policy keeps both
	assert.Len(t, NewMatcher(nil, AllowMultiMatch).Match(odds, preds).Pairs, 2)
}

func TestMatchSkipsRecordsWithoutIdentity(t *testing.T) {
	odds := []OddsQuote{
		quote("bad", "", "Boston Red Sox", at(23, 10)),
		quote("g1", "NY Yankees", "Boston Red Sox", at(23, 10)),
	}
	preds := []Prediction{
		prediction("Yankees", " ", at(23, 5)),
		prediction("Yankees", "Red Sox", at(23, 5)),
	}

	res := NewMatcher(nil, "").Match(odds, preds)

	require.Len(t, res.Pairs, 1)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, SourcePredictions, res.Skipped[0].Source)
	assert.Equal(t, SourceOdds, res.Skipped[1].Source)
	assert.True(t, errors.Is(res.Skipped[0], ErrInvalidIdentity))
}

func TestMatchWithCustomIdentity(t *testing.T) {
	odds := []OddsQuote{quote("g1", "NY YANKEES", "Boston Red Sox", at(23, 10))}
	preds := []Prediction{prediction("Yankees", "red sox", at(23, 5))}

	assert.Empty(t, NewMatcher(SuffixKey, "").Match(odds, preds).Pairs)
	assert.Len(t, NewMatcher(FoldedSuffixKey, "").Match(odds, preds).Pairs, 1)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AllowMultiMatch, p)

	p, err = ParseMatchPolicy("require-unique-match")
	require.NoError(t, err)
	assert.Equal(t, RequireUniqueMatch, p)

	_, err = ParseMatchPolicy("best-match")
	assert.Error(t, err)
}
