package oddsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/sibyl/internal/cache"
	"github.com/fortuna/sibyl/internal/logging"
)

const oddsResponse = `[
  {
    "id": "abc123",
    "sport_key": "baseball_mlb",
    "commence_time": "2025-04-21T23:10:00Z",
    "home_team": "New York Yankees",
    "away_team": "Boston Red Sox",
    "bookmakers": [
      {
        "key": "draftkings",
        "title": "DraftKings",
        "markets": [
          {"key": "h2h", "outcomes": [
            {"name": "Boston Red Sox", "price": 130},
            {"name": "New York Yankees", "price": -150}
          ]}
        ]
      }
    ]
  },
  {
    "id": "def456",
    "sport_key": "baseball_mlb",
    "commence_time": "2025-04-22T02:10:00Z",
    "home_team": "Seattle Mariners",
    "away_team": "Houston Astros",
    "bookmakers": []
  }
]`

var fixedNow = time.Date(2025, 4, 21, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		assert.Equal(t, "/baseball_mlb/odds/", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "us", q.Get("regions"))
		assert.Equal(t, "h2h", q.Get("markets"))
		assert.Equal(t, "american", q.Get("oddsFormat"))
		assert.Equal(t, "draftkings", q.Get("bookmakers"))
		assert.Equal(t, "2025-04-22T06:00:00Z", q.Get("commenceTimeTo"))
		assert.Equal(t, "secret", q.Get("apiKey"))

		w.Header().Set("x-requests-remaining", "481")
		w.Header().Set("x-requests-used", "19")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oddsResponse))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOdds(t *testing.T) {
	var hits int
	srv := newTestServer(t, &hits)

	c := New(Config{BaseURL: srv.URL, APIKey: "secret"},
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Nop()),
	)

	odds, err := c.FetchOdds(context.Background())
	require.NoError(t, err)
	require.Len(t, odds, 2)

	assert.Equal(t, "abc123", odds[0].GameID)
	assert.Equal(t, "2025-04-21T23:10:00Z", odds[0].StartTime)
	assert.Equal(t, "New York Yankees", odds[0].HomeTeam)
	require.NotNil(t, odds[0].HomeOdds)
	require.NotNil(t, odds[0].AwayOdds)
	assert.Equal(t, -150, *odds[0].HomeOdds)
	assert.Equal(t, 130, *odds[0].AwayOdds)

	// no bookmakers posted yet
	assert.Nil(t, odds[1].HomeOdds)
	assert.Nil(t, odds[1].AwayOdds)

	assert.Equal(t, RateLimits{Remaining: "481", Used: "19"}, c.RateLimits())
	assert.Equal(t, 1, hits)
}

func TestFetchOddsUsesCache(t *testing.T) {
	var hits int
	srv := newTestServer(t, &hits)

	mr := miniredis.RunT(t)
	rc := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	c := New(Config{BaseURL: srv.URL, APIKey: "secret", CacheTTL: time.Minute},
		WithClock(func() time.Time { return fixedNow }),
		WithCache(rc),
		WithLogger(logging.Nop()),
	)

	first, err := c.FetchOdds(context.Background())
	require.NoError(t, err)
	second, err := c.FetchOdds(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits)
}

func TestFetchOddsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "secret"}, WithLogger(logging.Nop()))
	_, err := c.FetchOdds(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = New(Config{BaseURL: srv.URL}).FetchOdds(context.Background())
	assert.ErrorContains(t, err, "api key")
}

func TestCommenceTimeTo(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 22:00 EDT is already the next UTC day
	late := time.Date(2025, 4, 21, 22, 0, 0, 0, ny)
	assert.Equal(t, time.Date(2025, 4, 23, 6, 0, 0, 0, time.UTC), CommenceTimeTo(late))
	assert.Equal(t, time.Date(2025, 4, 22, 6, 0, 0, 0, time.UTC), CommenceTimeTo(fixedNow))
}

func TestLoadSampleKeepsEarliestDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample_odds_api_response.json")
	require.NoError(t, os.WriteFile(path, []byte(oddsResponse), 0o600))

	odds, err := LoadSample(path, logging.Nop())
	require.NoError(t, err)
	require.Len(t, odds, 1)
	assert.Equal(t, "abc123", odds[0].GameID)

	odds, err = SampleSource{Path: path, Logger: logging.Nop()}.FetchOdds(context.Background())
	require.NoError(t, err)
	assert.Len(t, odds, 1)
}

func TestLoadSampleErrors(t *testing.T) {
	_, err := LoadSample(filepath.Join(t.TempDir(), "missing.json"), logging.Nop())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = LoadSample(path, logging.Nop())
	assert.ErrorContains(t, err, "decoding")
}
