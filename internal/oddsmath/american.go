// Package oddsmath converts American moneyline odds and compares them with
// model win percentages.
package oddsmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.6667
func AmericanToDecimal(american int) (decimal.Decimal, error) {
	if american == 0 {
		return decimal.Zero, fmt.Errorf("invalid American odds: cannot be 0")
	}

	a := decimal.NewFromInt(int64(american))
	if american > 0 {
		return a.Div(hundred).Add(one), nil
	}
	return hundred.Div(a.Neg()).Add(one), nil
}

// ImpliedProbability returns the break-even win probability (0..1) priced
// into American odds, vig included.
// American -150 → 0.6
// American +130 → 0.4348
func ImpliedProbability(american int) (decimal.Decimal, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return decimal.Zero, err
	}
	return one.Div(dec), nil
}

// ExpectedValue is the expected profit of staking 100 units at the given
// American odds when the side wins winPct percent of the time.
//
//	EV = p * profit - (1 - p) * 100
func ExpectedValue(american int, winPct float64) (decimal.Decimal, error) {
	if winPct < 0 || winPct > 100 {
		return decimal.Zero, fmt.Errorf("invalid win percentage %.2f: must be between 0 and 100", winPct)
	}

	dec, err := AmericanToDecimal(american)
	if err != nil {
		return decimal.Zero, err
	}

	p := decimal.NewFromFloat(winPct).Div(hundred)
	profit := dec.Sub(one).Mul(hundred)

	return p.Mul(profit).Sub(one.Sub(p).Mul(hundred)), nil
}

// Edge is the model probability minus the implied probability, in
// percentage points. Positive means the model likes the side more than the
// book does.
func Edge(american int, winPct float64) (decimal.Decimal, error) {
	implied, err := ImpliedProbability(american)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(winPct).Sub(implied.Mul(hundred)), nil
}
