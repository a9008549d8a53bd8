package reconciliation

import (
	"fmt"
	"time"
)

// MatchPolicy decides what happens when a record has more than one counterpart.
type MatchPolicy string

const (
	// AllowMultiMatch emits one pair per matching combination, silently.
	AllowMultiMatch MatchPolicy = "allow-multi-match"

	// RequireUniqueMatch withholds every pair that involves a record with
	// more than one counterpart and reports it as an AmbiguousMatchError.
	RequireUniqueMatch MatchPolicy = "require-unique-match"
)

// ParseMatchPolicy validates a policy name. Empty means AllowMultiMatch.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(s) {
	case "", AllowMultiMatch:
		return AllowMultiMatch, nil
	case RequireUniqueMatch:
		return RequireUniqueMatch, nil
	default:
		return "", fmt.Errorf("unknown match policy %q (want %s or %s)", s, AllowMultiMatch, RequireUniqueMatch)
	}
}

// Matcher pairs odds quotes with predictions by exact equality of
// (home key, away key, hour bucket). There is no similarity scoring.
type Matcher struct {
	identity IdentityFunc
	policy   MatchPolicy
}

// NewMatcher creates a matcher. A nil identity means SuffixKey and an empty
// policy means AllowMultiMatch.
func NewMatcher(identity IdentityFunc, policy MatchPolicy) *Matcher {
	if identity == nil {
		identity = SuffixKey
	}
	if policy == "" {
		policy = AllowMultiMatch
	}

	return &Matcher{
		identity: identity,
		policy:   policy,
	}
}

// Policy returns the active multiplicity policy
func (m *Matcher) Policy() MatchPolicy {
	return m.policy
}

// MatchResult is the outcome of one Match call.
type MatchResult struct {
	Pairs     []Pair
	Ambiguous []*AmbiguousMatchError
	Skipped   []*RecordError
}

type matchKey struct {
	home   string
	away   string
	bucket HourBucket
}

func (k matchKey) String() string {
	return fmt.Sprintf("%s_vs_%s@%s", k.home, k.away, k.bucket)
}

func (m *Matcher) keyOf(home, away string, t time.Time) (matchKey, error) {
	h, err := m.identity(home)
	if err != nil {
		return matchKey{}, err
	}
	a, err := m.identity(away)
	if err != nil {
		return matchKey{}, err
	}
	return matchKey{home: h, away: a, bucket: BucketOf(t)}, nil
}

// Match pairs every odds quote with every prediction that shares its key.
// Pairs come out in nested-scan order: by odds position, then by prediction
// position. Unmatched records on either side produce nothing.
func (m *Matcher) Match(odds []OddsQuote, predictions []Prediction) MatchResult {
	var result MatchResult

	index := make(map[matchKey][]int, len(predictions))
	for i, p := range predictions {
		k, err := m.keyOf(p.HomeTeam, p.AwayTeam, p.Time)
		if err != nil {
			result.Skipped = append(result.Skipped, &RecordError{Source: SourcePredictions, Index: i, Err: err})
			continue
		}
		index[k] = append(index[k], i)
	}

	type candidate struct {
		odds  int
		key   matchKey
		preds []int
	}

	var candidates []candidate
	claims := make(map[int][]int)
	for i, o := range odds {
		k, err := m.keyOf(o.HomeTeam, o.AwayTeam, o.StartTime)
		if err != nil {
			result.Skipped = append(result.Skipped, &RecordError{Source: SourceOdds, Index: i, Err: err})
			continue
		}

		preds := index[k]
		if len(preds) == 0 {
			continue
		}

		candidates = append(candidates, candidate{odds: i, key: k, preds: preds})
		for _, p := range preds {
			claims[p] = append(claims[p], i)
		}
	}

	unique := m.policy == RequireUniqueMatch
	contested := make(map[int]bool)
	if unique {
		for p := range predictions {
			if len(claims[p]) > 1 {
				contested[p] = true
			}
		}
	}

	for _, c := range candidates {
		if unique {
			if len(c.preds) > 1 {
				result.Ambiguous = append(result.Ambiguous, &AmbiguousMatchError{
					Source:     SourceOdds,
					Index:      c.odds,
					Key:        c.key.String(),
					Candidates: append([]int(nil), c.preds...),
				})
				continue
			}
			if contested[c.preds[0]] {
				continue
			}
		}

		for _, p := range c.preds {
			result.Pairs = append(result.Pairs, Pair{Odds: odds[c.odds], Prediction: predictions[p]})
		}
	}

	if unique {
		for p := range predictions {
			if !contested[p] {
				continue
			}
			pr := predictions[p]
			k, _ := m.keyOf(pr.HomeTeam, pr.AwayTeam, pr.Time)
			result.Ambiguous = append(result.Ambiguous, &AmbiguousMatchError{
				Source:     SourcePredictions,
				Index:      p,
				Key:        k.String(),
				Candidates: append([]int(nil), claims[p]...),
			})
		}
	}

	return result
}
