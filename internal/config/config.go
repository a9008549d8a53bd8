// Package config loads sibyl's settings from defaults, a YAML file, .env
// files and SIBYL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fortuna/sibyl/internal/reconciliation"
)

// EnvPrefix is prepended to every environment variable, so report.time_zone
// is read from SIBYL_REPORT_TIME_ZONE.
const EnvPrefix = "SIBYL"

// Config holds the application configuration
type Config struct {
	OddsAPI        OddsAPIConfig        `mapstructure:"odds_api"`
	Predictions    PredictionsConfig    `mapstructure:"predictions"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Report         ReportConfig         `mapstructure:"report"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Server         ServerConfig         `mapstructure:"server"`
	Schedule       ScheduleConfig       `mapstructure:"schedule"`
	Telegram       TelegramConfig       `mapstructure:"telegram"`
	Log            LogConfig            `mapstructure:"log"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// OddsAPIConfig configures the odds fetch.
type OddsAPIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	APIKeyFile    string        `mapstructure:"api_key_file"`
	Sport         string        `mapstructure:"sport"`
	Regions       string        `mapstructure:"regions"`
	Markets       string        `mapstructure:"markets"`
	OddsFormat    string        `mapstructure:"odds_format"`
	Bookmakers    string        `mapstructure:"bookmakers"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	UseSampleData bool          `mapstructure:"use_sample_data"`
	SampleFile    string        `mapstructure:"sample_file"`
}

// PredictionsConfig configures the predictions scrape.
type PredictionsConfig struct {
	URL         string        `mapstructure:"url"`
	PageZone    string        `mapstructure:"page_zone"`
	Browser     bool          `mapstructure:"browser"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// ReconciliationConfig selects how records are matched.
type ReconciliationConfig struct {
	MatchPolicy string `mapstructure:"match_policy"`
	// Identity is "suffix" (last word, case-sensitive) or "folded"
	// (last word, case and accent insensitive).
	Identity  string `mapstructure:"identity"`
	AliasFile string `mapstructure:"alias_file"`
}

// ReportConfig controls report naming and output.
type ReportConfig struct {
	TimeZone string `mapstructure:"time_zone"`
	Name     string `mapstructure:"name"`
	CSVDir   string `mapstructure:"csv_dir"`
}

// PostgresConfig enables the report store when DSN is set.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig enables caching and stream publishing when URL is set.
type RedisConfig struct {
	URL          string `mapstructure:"url"`
	Stream       string `mapstructure:"stream"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScheduleConfig configures the daily run.
type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// TelegramConfig enables summaries when Token and ChatID are set.
type TelegramConfig struct {
	Token  string  `mapstructure:"token"`
	ChatID int64   `mapstructure:"chat_id"`
	MinEV  float64 `mapstructure:"min_ev"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls where configuration is read from.
type Options struct {
	// ConfigFile is an explicit YAML file. When empty, sibyl.yaml is looked
	// up in the working directory and $HOME/.config/sibyl.
	ConfigFile string

	// EnvFiles are loaded into the process environment first. Missing files
	// are ignored. Nil means .env then .env.local.
	EnvFiles []string

	// Bind lets the caller bind command-line flags before values are read.
	Bind func(v *viper.Viper) error
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("odds_api.base_url", "https://api.the-odds-api.com/v4/sports")
	v.SetDefault("odds_api.api_key", "")
	v.SetDefault("odds_api.api_key_file", "creds/odds_api_key.txt")
	v.SetDefault("odds_api.sport", "baseball_mlb")
	v.SetDefault("odds_api.regions", "us")
	v.SetDefault("odds_api.markets", "h2h")
	v.SetDefault("odds_api.odds_format", "american")
	v.SetDefault("odds_api.bookmakers", "draftkings")
	v.SetDefault("odds_api.timeout", 15*time.Second)
	v.SetDefault("odds_api.cache_ttl", 10*time.Minute)
	v.SetDefault("odds_api.use_sample_data", false)
	v.SetDefault("odds_api.sample_file", "sample_odds_api_response.json")

	v.SetDefault("predictions.url", "https://www.mlbgamesim.com/mlb-predictions.asp?LineType=2")
	v.SetDefault("predictions.page_zone", "America/New_York")
	v.SetDefault("predictions.browser", false)
	v.SetDefault("predictions.min_interval", 2*time.Second)

	v.SetDefault("reconciliation.match_policy", string(reconciliation.AllowMultiMatch))
	v.SetDefault("reconciliation.identity", "suffix")
	v.SetDefault("reconciliation.alias_file", "")

	v.SetDefault("report.time_zone", "America/New_York")
	v.SetDefault("report.name", "")
	v.SetDefault("report.csv_dir", "reports")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.stream", "reports.merged.baseball_mlb")
	v.SetDefault("redis.stream_max_len", 1000)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.cron", "0 11 * * *")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("schedule.max_retries", 3)
	v.SetDefault("schedule.retry_delay", 5*time.Minute)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.min_ev", 0.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Load reads the configuration. The odds API key is taken from the key file
// when not set directly.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	loadEnvFiles(envFiles)

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("sibyl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/sibyl")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if opts.Bind != nil {
		if err := opts.Bind(v); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env
func loadEnvFiles(files []string) {
	for i := len(files) - 1; i >= 0; i-- {
		// godotenv.Load never overwrites, so later files go first
		_ = godotenv.Load(files[i])
	}
}

func (c *Config) resolveAPIKey() error {
	if c.OddsAPI.APIKey != "" || c.OddsAPI.APIKeyFile == "" {
		return nil
	}

	b, err := os.ReadFile(c.OddsAPI.APIKeyFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading api key file: %w", err)
	}
	c.OddsAPI.APIKey = strings.TrimSpace(string(b))
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := reconciliation.LoadZone(c.Report.TimeZone); err != nil {
		return fmt.Errorf("report.time_zone: %w", err)
	}
	if _, err := reconciliation.LoadZone(c.Predictions.PageZone); err != nil {
		return fmt.Errorf("predictions.page_zone: %w", err)
	}
	if _, err := reconciliation.ParseMatchPolicy(c.Reconciliation.MatchPolicy); err != nil {
		return fmt.Errorf("reconciliation.match_policy: %w", err)
	}
	switch c.Reconciliation.Identity {
	case "", "suffix", "folded":
	default:
		return fmt.Errorf("reconciliation.identity: unknown identity %q (want suffix or folded)", c.Reconciliation.Identity)
	}
	if !c.OddsAPI.UseSampleData && c.OddsAPI.APIKey == "" {
		return errors.New("odds api key is not configured (set SIBYL_ODDS_API_API_KEY or odds_api.api_key_file)")
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == 0) {
		return errors.New("telegram.token and telegram.chat_id must be set together")
	}
	return nil
}

// Identity builds the configured team identity function.
func (c *Config) Identity() (reconciliation.IdentityFunc, error) {
	var base reconciliation.IdentityFunc = reconciliation.SuffixKey
	if c.Reconciliation.Identity == "folded" {
		base = reconciliation.FoldedSuffixKey
	}

	if c.Reconciliation.AliasFile == "" {
		return base, nil
	}

	table, err := reconciliation.LoadAliasTable(c.Reconciliation.AliasFile, base)
	if err != nil {
		return nil, err
	}
	return table.Key, nil
}
