package reconciliation

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrTimeParse indicates a timestamp that is not valid ISO-8601
	ErrTimeParse = errors.New("invalid timestamp")

	// ErrInvalidIdentity indicates a team name no identity key can be derived from
	ErrInvalidIdentity = errors.New("invalid team identity")

	// ErrTimeZone indicates an unrecognized target time zone
	ErrTimeZone = errors.New("unknown time zone")

	// ErrAmbiguousMatch indicates a record matched more than one counterpart
	// while the unique-match policy was in force
	ErrAmbiguousMatch = errors.New("ambiguous match")
)

// TimeParseError reports a timestamp that could not be parsed.
type TimeParseError struct {
	Value string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: not ISO-8601", e.Value)
}

// Is implements errors.Is support
func (e *TimeParseError) Is(target error) bool {
	return target == ErrTimeParse
}

// InvalidIdentityError reports a team name that yields no identity key.
type InvalidIdentityError struct {
	Name   string
	Reason string
}

func (e *InvalidIdentityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid team identity %q", e.Name)
	}
	return fmt.Sprintf("invalid team identity %q: %s", e.Name, e.Reason)
}

// Is implements errors.Is support
func (e *InvalidIdentityError) Is(target error) bool {
	return target == ErrInvalidIdentity
}

// TimeZoneError reports an unknown presentation time zone. It is a
// configuration error and aborts the whole merge call.
type TimeZoneError struct {
	Zone string
	Err  error
}

func (e *TimeZoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown time zone %q: %v", e.Zone, e.Err)
	}
	return fmt.Sprintf("unknown time zone %q", e.Zone)
}

// Is implements errors.Is support
func (e *TimeZoneError) Is(target error) bool {
	return target == ErrTimeZone
}

// Unwrap returns the underlying load error
func (e *TimeZoneError) Unwrap() error {
	return e.Err
}

// Source identifies which input list a record came from.
type Source string

const (
	SourceOdds        Source = "odds"
	SourcePredictions Source = "predictions"
)

// AmbiguousMatchError reports a record with more than one counterpart under
// RequireUniqueMatch. Index is the record's position in its input list and
// Candidates the positions of its counterparts in the other list.
type AmbiguousMatchError struct {
	Source     Source
	Index      int
	Key        string
	Candidates []int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s record %d (%s) matched %d candidates %v",
		e.Source, e.Index, e.Key, len(e.Candidates), e.Candidates)
}

// Is implements errors.Is support
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// RecordError ties a per-record failure to its position in the input.
// Such records are skipped; the rest of the batch proceeds.
type RecordError struct {
	Source Source
	Index  int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d skipped: %v", e.Source, e.Index, e.Err)
}

// Unwrap returns the cause
func (e *RecordError) Unwrap() error {
	return e.Err
}
