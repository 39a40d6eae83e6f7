// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"slices"

	"github.com/holiman/uint256"
)

// newTally returns a zeroed accumulator for the given options.
func newTally(ids []int) map[int]*uint256.Int {
	tally := make(map[int]*uint256.Int, len(ids))
	for _, id := range ids {
		tally[id] = new(uint256.Int)
	}
	return tally
}

// totals sums participating and abstained weight. The participating sum
// bounds every per-option accumulator, so checking it for overflow here
// covers the tally as well.
func totals(ballots []Ballot) (participating, abstained *uint256.Int, err error) {
	participating, abstained = new(uint256.Int), new(uint256.Int)
	for i, b := range ballots {
		sum := participating
		if b.Abstain {
			sum = abstained
		}
		if _, overflow := sum.AddOverflow(sum, b.Weight); overflow {
			return nil, nil, malformed(i, b, "weight overflows 256 bits")
		}
	}
	return participating, abstained, nil
}

// countSingleRound runs the common tally step once. Approval ballots add
// their full weight to every approved option; every other ballot adds its
// weight to its first choice.
func countSingleRound(mode Mode, ids []int, ballots []Ballot) map[int]*uint256.Int {
	tally := newTally(ids)
	for _, b := range ballots {
		if b.Abstain {
			continue
		}
		if mode.Condition == Approval {
			for _, id := range b.Choices {
				tally[id].Add(tally[id], b.Weight)
			}
			continue
		}
		top := b.Choices[0]
		tally[top].Add(tally[top], b.Weight)
	}
	return tally
}

// leaders returns the options holding the greatest weight, ascending.
func leaders(ids []int, tally map[int]*uint256.Int) []int {
	return extremes(ids, tally, 1)
}

// trailers returns the options holding the least weight, ascending.
func trailers(ids []int, tally map[int]*uint256.Int) []int {
	return extremes(ids, tally, -1)
}

func extremes(ids []int, tally map[int]*uint256.Int, sign int) []int {
	var best *uint256.Int
	var out []int
	for _, id := range ids {
		w := tally[id]
		switch {
		case best == nil || w.Cmp(best) == sign:
			best = w
			out = append(out[:0], id)
		case w.Eq(best):
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// half is floor(w/2). Integer weights exceed half of total exactly when
// they are greater than floor(total/2).
func half(w *uint256.Int) *uint256.Int {
	return new(uint256.Int).Rsh(w, 1)
}
