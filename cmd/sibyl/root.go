package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fortuna/sibyl/internal/config"
	"github.com/fortuna/sibyl/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	configFile string
	logLevel   string

	cfg    *config.Config
	logger *zerolog.Logger
}

// flagKeys maps command-line flags to config keys. Flags a command does not
// define are skipped.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"use-sample-data": "odds_api.use_sample_data",
	"sample-file":     "odds_api.sample_file",
	"csv-dir":         "report.csv_dir",
	"report-name":     "report.name",
	"addr":            "server.addr",
	"run-on-start":    "schedule.run_on_start",
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sibyl",
		Short: "Daily MLB odds and prediction sheet",
		Long: `sibyl fetches DraftKings moneylines from the-odds-api, scrapes model
win probabilities from mlbgamesim.com, joins the two per game and writes
the result as a report.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is ./sibyl.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.SetVersionTemplate("sibyl {{.Version}}\n")

	root.AddCommand(newGenerateCommand(a))
	root.AddCommand(newServeCommand(a))

	return root
}

// setup loads configuration and the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{
		ConfigFile: a.configFile,
		Bind: func(v *viper.Viper) error {
			for name, key := range flagKeys {
				flag := cmd.Flags().Lookup(name)
				if flag == nil {
					continue
				}
				if err := v.BindPFlag(key, flag); err != nil {
					return fmt.Errorf("--%s: %w", name, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logging.SetDefault(logger)
	a.logger = logging.Default()
	a.cfg = cfg

	if cfg.ConfigFile != "" {
		a.logger.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
	}

	return cfg.Validate()
}
