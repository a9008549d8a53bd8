package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fortuna/sibyl/internal/report"
	"github.com/fortuna/sibyl/internal/service"
)

func newGenerateCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build today's report once and exit",
		Long: `Fetch odds and predictions, reconcile them and write the report to
every configured sink (CSV, Postgres, Redis stream, Telegram).

Use --use-sample-data to read odds from a saved API response instead of
spending API quota.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case "", "table", "json":
			default:
				return fmt.Errorf("unknown --output %q (want table or json)", output)
			}

			ctx := cmd.Context()
			c, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					a.logger.Warn().Err(err).Msg("Closing resources")
				}
			}()

			rep, err := c.generator.Generate(ctx, service.GenerateOptions{Name: a.cfg.Report.Name})
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return a.writeTable(cmd.OutOrStdout(), rep)
		},
	}

	f := cmd.Flags()
	f.Bool("use-sample-data", false, "read odds from --sample-file instead of the API")
	f.String("sample-file", "", "saved odds API response (default sample_odds_api_response.json)")
	f.String("csv-dir", "", "directory for the CSV sheet (default reports)")
	f.String("report-name", "", "report name (default today's date in the report time zone)")
	f.StringVarP(&output, "output", "o", "table", "output format: table or json")

	return cmd
}

// writeTable prints the sheet, marking sides above the EV threshold.
func (a *app) writeTable(w io.Writer, rep *report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Report %s (%s), %d games\n\n", rep.Name, rep.TimeZone, len(rep.Records))
	fmt.Fprintln(tw, strings.Join(append(append([]string{}, report.Header...), ""), "\t"))

	threshold := a.minEV()
	for _, row := range rep.Rows() {
		mark := ""
		if row.EV.Valid && row.EV.Decimal.GreaterThan(threshold) {
			mark = "*"
		}
		fmt.Fprintln(tw, strings.Join(append(row.Values(), mark), "\t"))
	}

	if s := rep.Stats; s.OddsSkipped+s.PredictionsSkipped+s.Ambiguous > 0 {
		fmt.Fprintf(tw, "\nskipped: %d odds, %d predictions; ambiguous: %d\n",
			s.OddsSkipped, s.PredictionsSkipped, s.Ambiguous)
	}

	return tw.Flush()
}
