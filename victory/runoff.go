// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"slices"

	"github.com/holiman/uint256"
)

// resolveRunoff runs instant-runoff rounds until one option holds more than
// half of the round's participating weight.
//
// All options tied at the minimum are eliminated together. If that would
// remove every remaining option the poll has no winner.
func resolveRunoff(res *Resolution, ids []int, ballots []Ballot) {
	remaining := slices.Clone(ids)
	eliminated := make(map[int]bool, len(ids))
	// cursor[i] is the position of ballot i's top remaining preference.
	cursor := make([]int, len(ballots))

	for index := 0; ; index++ {
		tally := newTally(remaining)
		participating, exhausted := new(uint256.Int), new(uint256.Int)
		for i, b := range ballots {
			if b.Abstain {
				continue
			}
			for cursor[i] < len(b.Choices) && eliminated[b.Choices[cursor[i]]] {
				cursor[i]++
			}
			if cursor[i] == len(b.Choices) {
				exhausted.Add(exhausted, b.Weight)
				continue
			}
			top := b.Choices[cursor[i]]
			tally[top].Add(tally[top], b.Weight)
			participating.Add(participating, b.Weight)
		}

		res.Threshold = half(participating)
		res.Rounds = append(res.Rounds, Round{
			Index:         index,
			Tally:         tally,
			Eliminated:    sortedKeys(eliminated),
			Participating: participating,
			Exhausted:     exhausted,
		})
		if participating.IsZero() {
			return
		}

		for _, id := range remaining {
			if tally[id].Gt(res.Threshold) {
				res.Winner = id
				return
			}
		}

		lowest := trailers(remaining, tally)
		if len(lowest) == len(remaining) {
			return
		}
		for _, id := range lowest {
			eliminated[id] = true
		}
		remaining = slices.DeleteFunc(remaining, func(id int) bool { return eliminated[id] })
	}
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
