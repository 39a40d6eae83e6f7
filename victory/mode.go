// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"fmt"
	"slices"
)

// Mode is the single effective resolution mode of a poll.
type Mode struct {
	Condition Condition
	// ApprovalMajority requires an approval winner to exceed half of the
	// participating weight. Set when Majority is declared next to Approval.
	ApprovalMajority bool
}

// precedence is the order in which declared conditions claim the mode.
var precedence = []Condition{InstantRunoff, Plurality, Approval, Majority}

// SelectMode picks the effective mode for the declared conditions and checks
// it against the input format.
func SelectMode(conditions []Condition, format InputFormat) (Mode, error) {
	if !format.Valid() {
		return Mode{}, fmt.Errorf("%w: unknown input format %q", ErrMalformedPoll, format)
	}
	for _, c := range conditions {
		if !c.Valid() {
			return Mode{}, fmt.Errorf("%w: unknown victory condition %q", ErrMalformedPoll, c)
		}
	}
	if len(conditions) == 0 {
		return Mode{}, ambiguous(conditions, format, "no victory condition declared")
	}

	var mode Mode
	for _, c := range precedence {
		if slices.Contains(conditions, c) {
			mode.Condition = c
			break
		}
	}

	switch mode.Condition {
	case InstantRunoff:
		if format != RankFree {
			return Mode{}, ambiguous(conditions, format, "instant-runoff needs ranked ballots")
		}
	case Plurality, Majority:
		if format != SingleChoice {
			return Mode{}, ambiguous(conditions, format, fmt.Sprintf("%s needs single-choice ballots", mode.Condition))
		}
	case Approval:
		if format == RankFree {
			return Mode{}, ambiguous(conditions, format, "approval needs unranked ballots")
		}
		mode.ApprovalMajority = slices.Contains(conditions, Majority)
	}
	return mode, nil
}

// Label is the display name of the mode.
func (m Mode) Label() string {
	switch m.Condition {
	case InstantRunoff:
		return "Ranked-choice poll"
	case Plurality:
		return "Plurality poll"
	case Approval:
		return "Approval poll"
	case Majority:
		return "Majority poll"
	}
	return "Unknown poll"
}

func (m Mode) String() string {
	if m.ApprovalMajority {
		return string(m.Condition) + "+majority"
	}
	return string(m.Condition)
}

// majorityBased reports whether the winner must exceed half of the weight.
func (m Mode) majorityBased() bool {
	return m.Condition == Majority || m.Condition == InstantRunoff || m.ApprovalMajority
}

func ambiguous(conditions []Condition, format InputFormat, reason string) error {
	return &AmbiguousVictoryConditionError{
		Conditions:  slices.Clone(conditions),
		InputFormat: format,
		Reason:      reason,
	}
}
