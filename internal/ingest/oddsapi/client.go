// Package oddsapi fetches MLB moneylines from the-odds-api v4.
package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/reconciliation"
)

const (
	// BaseURL for the-odds-api v4 sport endpoints
	BaseURL = "https://api.the-odds-api.com/v4/sports"

	// SportMLB is the sport key for Major League Baseball
	SportMLB = "baseball_mlb"

	// DefaultTimeout bounds a single API call
	DefaultTimeout = 15 * time.Second
)

// Config selects which odds are requested.
type Config struct {
	BaseURL    string
	APIKey     string
	Sport      string
	Regions    string
	Markets    string
	OddsFormat string
	Bookmakers string
	Timeout    time.Duration

	// CacheTTL is how long a response is reused when a cache is configured.
	// Zero disables caching.
	CacheTTL time.Duration
}

// DefaultConfig returns DraftKings American moneylines for MLB.
func DefaultConfig() Config {
	return Config{
		BaseURL:    BaseURL,
		Sport:      SportMLB,
		Regions:    "us",
		Markets:    marketH2H,
		OddsFormat: "american",
		Bookmakers: "draftkings",
		Timeout:    DefaultTimeout,
	}
}

// Cache stores decoded API responses between runs.
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Client handles the-odds-api requests
type Client struct {
	cfg    Config
	http   *http.Client
	cache  Cache
	logger *zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	limits RateLimits
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache enables response caching for cfg.CacheTTL.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the client logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the clock used to compute the request window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client. Empty fields in cfg take their DefaultConfig value.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Sport == "" {
		cfg.Sport = def.Sport
	}
	if cfg.Regions == "" {
		cfg.Regions = def.Regions
	}
	if cfg.Markets == "" {
		cfg.Markets = def.Markets
	}
	if cfg.OddsFormat == "" {
		cfg.OddsFormat = def.OddsFormat
	}
	if cfg.Bookmakers == "" {
		cfg.Bookmakers = def.Bookmakers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logging.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommenceTimeTo is 06:00 UTC on the day after now, which covers a full
// North American evening slate.
func CommenceTimeTo(now time.Time) time.Time {
	tomorrow := now.UTC().AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 6, 0, 0, 0, time.UTC)
}

// FetchOdds fetches today's moneylines and parses them into raw odds records.
func (c *Client) FetchOdds(ctx context.Context) ([]reconciliation.RawOdds, error) {
	events, err := c.FetchEvents(ctx)
	if err != nil {
		return nil, err
	}
	return ParseEvents(events, c.logger), nil
}

// FetchEvents returns the API events as sent, from cache when a fresh copy
// is available.
func (c *Client) FetchEvents(ctx context.Context) ([]Event, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("odds api key is not configured")
	}

	to := CommenceTimeTo(c.now()).Format("2006-01-02T15:04:05Z")
	cacheKey := fmt.Sprintf("oddsapi:%s:%s:%s:%s", c.cfg.Sport, c.cfg.Bookmakers, c.cfg.Markets, to)

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		var cached []Event
		err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			c.logger.Debug().Str("key", cacheKey).Int("events", len(cached)).Msg("Odds served from cache")
			return cached, nil
		}
		c.logger.Debug().Err(err).Str("key", cacheKey).Msg("Odds cache miss")
	}

	events, err := c.get(ctx, to)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := c.cache.SetJSON(ctx, cacheKey, events, c.cfg.CacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache odds response")
		}
	}

	return events, nil
}

func (c *Client) get(ctx context.Context, commenceTo string) ([]Event, error) {
	q := url.Values{}
	q.Set("regions", c.cfg.Regions)
	q.Set("markets", c.cfg.Markets)
	q.Set("oddsFormat", c.cfg.OddsFormat)
	q.Set("bookmakers", c.cfg.Bookmakers)
	q.Set("commenceTimeTo", commenceTo)
	q.Set("apiKey", c.cfg.APIKey)

	endpoint := fmt.Sprintf("%s/%s/odds/?%s", c.cfg.BaseURL, c.cfg.Sport, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odds api request failed: %w", err)
	}
	defer resp.Body.Close()

	c.recordLimits(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds api returned %s: %s", resp.Status, body)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding odds response: %w", err)
	}

	limits := c.RateLimits()
	c.logger.Info().
		Str("sport", c.cfg.Sport).
		Int("events", len(events)).
		Str("requests_remaining", limits.Remaining).
		Dur("took", time.Since(start)).
		Msg("Fetched odds")

	return events, nil
}

func (c *Client) recordLimits(h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = RateLimits{
		Remaining: h.Get("x-requests-remaining"),
		Used:      h.Get("x-requests-used"),
		LastCost:  h.Get("x-requests-last"),
	}
}

// RateLimits returns the quota reported by the last live request.
func (c *Client) RateLimits() RateLimits {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits
}

// LoadSample reads a saved /odds response and returns the games on the
// earliest date it contains, for running without spending API quota.
func LoadSample(path string, logger *zerolog.Logger) ([]reconciliation.RawOdds, error) {
	if logger == nil {
		logger = logging.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample odds %s: %w", path, err)
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decoding sample odds %s: %w", path, err)
	}

	kept := FilterEarliestDate(events)
	logger.Info().
		Str("path", path).
		Int("events", len(events)).
		Int("kept", len(kept)).
		Msg("Loaded sample odds")

	return ParseEvents(kept, logger), nil
}

// SampleSource serves odds from a saved response file.
type SampleSource struct {
	Path   string
	Logger *zerolog.Logger
}

// FetchOdds implements the same contract as Client.FetchOdds.
func (s SampleSource) FetchOdds(ctx context.Context) ([]reconciliation.RawOdds, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadSample(s.Path, s.Logger)
}
