package gamesim

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/sibyl/internal/reconciliation"
)

// ErrTableNotFound means the page had no predictions table at all.
var ErrTableNotFound = errors.New("predictions table not found on the page")

var (
	matchupRe = regexp.MustCompile(`^(.+?)\s+@\s+(.+)$`)
	winnerRe  = regexp.MustCompile(`^(.+?)\s+win`)
	pctRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParsePredictions reads the predictions table. Game times on the page are
// wall-clock times in loc on the date of today; they are emitted as UTC
// RFC 3339 strings.
//
// Rows with fewer than three cells are ignored. Rows whose matchup or time
// cannot be read are still returned (empty teams, raw time text) so the
// reconciliation engine reports them.
func ParsePredictions(doc *goquery.Document, today time.Time, loc *time.Location) ([]reconciliation.RawPrediction, error) {
	table := doc.Find("table.table").First()
	if table.Length() == 0 {
		return nil, ErrTableNotFound
	}

	var preds []reconciliation.RawPrediction
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}

		cols := row.Find("td")
		if cols.Length() < 3 {
			return
		}

		away, home := parseMatchup(cols.Eq(1).Text())

		p := reconciliation.RawPrediction{
			Time:     parseGameTime(cols.Eq(0).Text(), today, loc),
			HomeTeam: home,
			AwayTeam: away,
		}
		p.HomeWinPct, p.AwayWinPct = parseOutcome(cols.Eq(2).Text(), home, away)

		preds = append(preds, p)
	})

	return preds, nil
}

// cleanText folds non-breaking spaces to spaces and trims.
func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// parseMatchup reads "Away @ Home".
func parseMatchup(cell string) (away, home string) {
	m := matchupRe.FindStringSubmatch(cleanText(cell))
	if m == nil {
		return "", ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

// parseGameTime reads "7 PM" or "1:35 PM" as a time on today's date in loc.
// Unreadable cells are returned as-is.
func parseGameTime(cell string, today time.Time, loc *time.Location) string {
	text := cleanText(cell)

	var clock time.Time
	var err error
	for _, layout := range []string{"3:04 PM", "3 PM", "3:04PM", "3PM"} {
		clock, err = time.Parse(layout, strings.ToUpper(text))
		if err == nil {
			break
		}
	}
	if err != nil {
		return text
	}

	y, m, d := today.In(loc).Date()
	local := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc)
	return local.UTC().Format(time.RFC3339)
}

// parseOutcome reads "<Team> win ... NN.N%". The favored side gets the
// percentage and the other side its complement. An unknown favorite or a
// percentage outside [0, 100] leaves both nil.
func parseOutcome(cell, home, away string) (homePct, awayPct *float64) {
	text := cleanText(cell)

	var winner string
	if m := winnerRe.FindStringSubmatch(text); m != nil {
		winner = strings.TrimSpace(m[1])
	}

	var pct *float64
	if m := pctRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 100 {
			pct = &v
		}
	}

	if winner == "" || pct == nil {
		return nil, nil
	}

	other := 100 - *pct
	switch winner {
	case home:
		return pct, &other
	case away:
		return &other, pct
	default:
		return nil, nil
	}
}
