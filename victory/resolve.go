// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"github.com/holiman/uint256"
)

// Resolve computes the winner of poll p over ballots.
//
// Errors are returned before any counting starts; there is no partial
// Resolution. The inputs are never modified.
func Resolve(p Poll, ballots []Ballot) (Resolution, error) {
	mode, err := SelectMode(p.Conditions, p.InputFormat)
	if err != nil {
		return Resolution{}, err
	}
	options, err := ValidatePoll(p)
	if err != nil {
		return Resolution{}, err
	}
	for i, b := range ballots {
		if err := ValidateBallot(i, b, p.InputFormat, options); err != nil {
			return Resolution{}, err
		}
	}
	participating, abstained, err := totals(ballots)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		Mode:          mode,
		Winner:        NoWinner,
		Participating: participating,
		Abstained:     abstained,
		Threshold:     new(uint256.Int),
	}
	ids := p.optionIDs()
	if mode.Condition == InstantRunoff {
		resolveRunoff(&res, ids, ballots)
	} else {
		resolveSingleRound(&res, ids, ballots)
	}
	return res, nil
}

// resolveSingleRound decides Plurality, Approval and Majority polls.
func resolveSingleRound(res *Resolution, ids []int, ballots []Ballot) {
	tally := countSingleRound(res.Mode, ids, ballots)
	res.Rounds = []Round{{
		Index:         0,
		Tally:         tally,
		Eliminated:    []int{},
		Participating: res.Participating.Clone(),
		Exhausted:     new(uint256.Int),
	}}
	if res.Mode.majorityBased() {
		res.Threshold = half(res.Participating)
	}
	if res.Participating.IsZero() {
		return
	}

	top := leaders(ids, tally)
	if len(top) > 1 {
		res.Tied = top
		return
	}
	if res.Mode.majorityBased() && !tally[top[0]].Gt(res.Threshold) {
		return
	}
	res.Winner = top[0]
}
