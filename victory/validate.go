// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"fmt"
)

// ValidatePoll checks the option list and returns the option id set.
func ValidatePoll(p Poll) (map[int]bool, error) {
	if len(p.Options) == 0 {
		return nil, fmt.Errorf("%w: poll has no options", ErrMalformedPoll)
	}
	ids := make(map[int]bool, len(p.Options))
	for _, o := range p.Options {
		if o.ID < 0 {
			return nil, fmt.Errorf("%w: negative option id %d", ErrMalformedPoll, o.ID)
		}
		if ids[o.ID] {
			return nil, fmt.Errorf("%w: duplicate option id %d", ErrMalformedPoll, o.ID)
		}
		ids[o.ID] = true
	}
	return ids, nil
}

// ValidateBallot checks that b fits the poll's input format and options.
// The ballot index i is only used for error reporting.
func ValidateBallot(i int, b Ballot, format InputFormat, options map[int]bool) error {
	if b.Weight == nil {
		return malformed(i, b, "missing weight")
	}
	if b.Abstain {
		if len(b.Choices) != 0 {
			return malformed(i, b, "abstaining ballot carries %d choices", len(b.Choices))
		}
		return nil
	}
	if len(b.Choices) == 0 {
		return malformed(i, b, "no choices")
	}

	switch format {
	case SingleChoice:
		if len(b.Choices) != 1 {
			return malformed(i, b, "single-choice ballot carries %d choices", len(b.Choices))
		}
	case ChooseFree, RankFree:
		if len(b.Choices) > len(options) {
			return malformed(i, b, "%d choices for %d options", len(b.Choices), len(options))
		}
	default:
		return fmt.Errorf("%w: unknown input format %q", ErrMalformedPoll, format)
	}

	seen := make(map[int]bool, len(b.Choices))
	for _, id := range b.Choices {
		if !options[id] {
			return malformed(i, b, "unknown option id %d", id)
		}
		if seen[id] {
			return malformed(i, b, "duplicate option id %d", id)
		}
		seen[id] = true
	}
	return nil
}
