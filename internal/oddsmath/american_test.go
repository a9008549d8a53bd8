package oddsmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmericanToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     string
	}{
		{"plus money", 150, "2.5"},
		{"even", 100, "2"},
		{"minus money", -200, "1.5"},
		{"favorite", -150, "1.6667"},
		{"long shot", 1000, "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmericanToDecimal(tt.american)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Round(4).String())
		})
	}

	_, err := AmericanToDecimal(0)
	assert.Error(t, err)
}

func TestImpliedProbability(t *testing.T) {
	p, err := ImpliedProbability(-150)
	require.NoError(t, err)
	assert.Equal(t, "0.6", p.Round(4).String())

	p, err = ImpliedProbability(130)
	require.NoError(t, err)
	assert.Equal(t, "0.4348", p.Round(4).String())
}

func TestExpectedValue(t *testing.T) {
	tests := []struct {
		name     string
		american int
		winPct   float64
		want     string
	}{
		// 55% at -150: 0.55*66.67 - 0.45*100
		{"favorite slightly negative", -150, 55, "-8.33"},
		// 45% at +130: 0.45*130 - 0.55*100
		{"dog positive", 130, 45, "3.5"},
		{"fair coin", 100, 50, "0"},
		{"certain win", -110, 100, "90.91"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpectedValue(tt.american, tt.winPct)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Round(2)), "got %s", got.Round(2))
		})
	}
}

func TestExpectedValueRejectsBadInput(t *testing.T) {
	_, err := ExpectedValue(0, 50)
	assert.Error(t, err)

	_, err = ExpectedValue(-110, 101)
	assert.Error(t, err)

	_, err = ExpectedValue(-110, -1)
	assert.Error(t, err)
}

func TestEdge(t *testing.T) {
	e, err := Edge(130, 45)
	require.NoError(t, err)
	assert.Equal(t, "1.52", e.Round(2).String())

	e, err = Edge(-150, 55)
	require.NoError(t, err)
	assert.Equal(t, "-5", e.Round(2).String())
}
