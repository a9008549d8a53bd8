package reconciliation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInstant(t *testing.T) {
	want := time.Date(2025, 4, 21, 23, 10, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"Z designator", "2025-04-21T23:10:00Z", want},
		{"zero offset", "2025-04-21T23:10:00+00:00", want},
		{"other offset", "2025-04-21T19:10:00-04:00", want},
		{"fractional seconds", "2025-04-21T23:10:00.000Z", want},
		{"naive is UTC", "2025-04-21T23:10:00", want},
		{"space separator", "2025-04-21 23:10:00", want},
		{"minute precision", "2025-04-21T23:10", want},
		{"surrounding whitespace", "  2025-04-21T23:10:00Z ", want},
		{"date only", "2025-04-21", time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInstant(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestToInstantRejectsNonISO(t *testing.T) {
	for _, in := range []string{"", "   ", "7 PM", "04/21/2025 23:10", "2025-13-01T00:00:00Z", "yesterday"} {
		_, err := ToInstant(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrTimeParse), in)

		var tpe *TimeParseError
		require.True(t, errors.As(err, &tpe))
		assert.Equal(t, in, tpe.Value)
	}
}

func TestBucketOfIgnoresMinutes(t *testing.T) {
	a := BucketOf(time.Date(2025, 4, 21, 23, 10, 0, 0, time.UTC))
	b := BucketOf(time.Date(2025, 4, 21, 23, 59, 59, 0, time.UTC))
	c := BucketOf(time.Date(2025, 4, 21, 22, 59, 0, 0, time.UTC))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "2025-04-21T23", a.String())
}

func TestBucketOfUsesUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 19:10 EDT is 23:10 UTC
	local := time.Date(2025, 4, 21, 19, 10, 0, 0, ny)
	assert.Equal(t, HourBucket{2025, time.April, 21, 23}, BucketOf(local))

	// 21:30 EDT crosses into the next UTC day
	late := time.Date(2025, 4, 21, 21, 30, 0, 0, ny)
	assert.Equal(t, HourBucket{2025, time.April, 22, 1}, BucketOf(late))
}

func TestSuffixKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NY Yankees", "Yankees"},
		{"Yankees", "Yankees"},
		{"Boston Red Sox", "Sox"},
		{"  Los Angeles   Dodgers  ", "Dodgers"},
		{"St. Louis Cardinals", "Cardinals"},
		{"Chicago\tCubs", "Cubs"},
	}

	for _, tt := range tests {
		got, err := SuffixKey(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSuffixKeyIsCaseSensitive(t *testing.T) {
	a, _ := SuffixKey("NY Yankees")
	b, _ := SuffixKey("ny yankees")
	assert.NotEqual(t, a, b)
}

func TestSuffixKeyRejectsEmpty(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n"} {
		_, err := SuffixKey(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidIdentity))
	}
}
