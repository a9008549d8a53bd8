package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/logging"
)

// Header is the column order of the sheet.
var Header = []string{"Game ID", "Start Time", "Team", "Odds", "Win %", "Implied %", "EV/100"}

// Values renders a row as sheet cells. Absent values are empty cells.
func (r Row) Values() []string {
	v := []string{r.GameID, r.StartTime, r.Team, "", "", "", ""}
	if r.Odds != nil {
		v[3] = strconv.Itoa(*r.Odds)
	}
	if r.WinPct != nil {
		v[4] = strconv.FormatFloat(*r.WinPct, 'f', -1, 64)
	}
	if r.ImpliedPct.Valid {
		v[5] = r.ImpliedPct.Decimal.StringFixed(2)
	}
	if r.EV.Valid {
		v[6] = r.EV.Decimal.StringFixed(2)
	}
	return v
}

// CSVSink writes each report to <Dir>/<name>.csv, replacing any earlier
// file for the same day.
type CSVSink struct {
	Dir    string
	Logger *zerolog.Logger
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// Path returns the file a report is written to.
func (s *CSVSink) Path(r *Report) string {
	return filepath.Join(s.Dir, r.Name+".csv")
}

// Write implements Sink. The file is written next to its destination and
// renamed into place.
func (s *CSVSink) Write(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	dest := s.Path(r)
	tmp, err := os.CreateTemp(s.Dir, "."+r.Name+"-*.csv")
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return err
	}
	for _, row := range r.Rows() {
		if err := w.Write(row.Values()); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("replacing %s: %w", dest, err)
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info().Str("path", dest).Int("games", len(r.Records)).Msg("Report written")
	return nil
}
