package reconciliation

import (
	"strings"
	"time"
)

// instantLayouts are tried in order. Layouts without a zone parse as UTC.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ToInstant parses an ISO-8601 timestamp into an absolute UTC instant.
// A trailing "Z", a numeric offset, or no designator at all (read as UTC)
// are accepted.
func ToInstant(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, &TimeParseError{Value: s}
	}

	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &TimeParseError{Value: s}
}

// BucketOf derives the (UTC date, UTC hour) matching key of an instant.
// Minutes and seconds are ignored: the two feeds disagree to the minute.
func BucketOf(t time.Time) HourBucket {
	u := t.UTC()
	return HourBucket{
		Year:  u.Year(),
		Month: u.Month(),
		Day:   u.Day(),
		Hour:  u.Hour(),
	}
}

// IdentityFunc derives a cross-source identity key from a team name.
type IdentityFunc func(name string) (string, error)

// SuffixKey returns the last whitespace-delimited token of the trimmed name.
// "NY Yankees" and "Yankees" both yield "Yankees". Matching is case-sensitive.
func SuffixKey(name string) (string, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", &InvalidIdentityError{Name: name, Reason: "empty name"}
	}
	return fields[len(fields)-1], nil
}
