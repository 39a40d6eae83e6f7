// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedBallot    = errors.New("malformed ballot")
	ErrAmbiguousCondition = errors.New("ambiguous victory condition")
	ErrMalformedPoll      = errors.New("malformed poll")
)

// MalformedBallotError reports a ballot that cannot be counted.
type MalformedBallotError struct {
	Index  int // position in the ballot slice
	Voter  string
	Reason string
}

func (e *MalformedBallotError) Error() string {
	if e.Voter == "" {
		return fmt.Sprintf("malformed ballot %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed ballot %d (voter %s): %s", e.Index, e.Voter, e.Reason)
}

func (e *MalformedBallotError) Is(target error) bool {
	return target == ErrMalformedBallot
}

// AmbiguousVictoryConditionError reports a set of victory conditions that
// does not select a usable mode for the poll's input format.
type AmbiguousVictoryConditionError struct {
	Conditions  []Condition
	InputFormat InputFormat
	Reason      string
}

func (e *AmbiguousVictoryConditionError) Error() string {
	return fmt.Sprintf("ambiguous victory condition %v for %s: %s", e.Conditions, e.InputFormat, e.Reason)
}

func (e *AmbiguousVictoryConditionError) Is(target error) bool {
	return target == ErrAmbiguousCondition
}

func malformed(i int, b Ballot, format string, args ...any) error {
	return &MalformedBallotError{Index: i, Voter: b.Voter, Reason: fmt.Sprintf(format, args...)}
}
