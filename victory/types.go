// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package victory

import (
	"slices"

	"github.com/holiman/uint256"
)

// Condition is a declared victory condition of a poll.
type Condition string

const (
	Plurality     Condition = "plurality"
	Majority      Condition = "majority"
	Approval      Condition = "approval"
	InstantRunoff Condition = "instant-runoff"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case Plurality, Majority, Approval, InstantRunoff:
		return true
	}
	return false
}

// InputFormat is the ballot shape a poll accepts.
type InputFormat string

const (
	SingleChoice InputFormat = "single-choice"
	ChooseFree   InputFormat = "choose-free"
	RankFree     InputFormat = "rank-free"
)

// Valid reports whether f is a known input format.
func (f InputFormat) Valid() bool {
	switch f {
	case SingleChoice, ChooseFree, RankFree:
		return true
	}
	return false
}

// NoWinner is the Resolution.Winner value when no option won.
const NoWinner = -1

type Option struct {
	ID    int
	Label string
}

type Poll struct {
	ID          string
	Options     []Option
	Conditions  []Condition
	InputFormat InputFormat
}

// Ballot is one voter's weighted choice.
//
// Choices holds one id for SingleChoice, an unordered set for ChooseFree and
// preferences in order for RankFree. An abstaining ballot has no choices.
type Ballot struct {
	Voter   string
	Weight  *uint256.Int
	Abstain bool
	Choices []int
}

// Round is the tally of one resolution round.
type Round struct {
	Index int
	// Tally maps every option still in the running to its weight.
	Tally map[int]*uint256.Int
	// Eliminated lists options removed before this round, ascending.
	Eliminated []int
	// Participating is the weight of ballots counted in this round.
	Participating *uint256.Int
	// Exhausted is the weight of ranked ballots with no preference left.
	Exhausted *uint256.Int
}

// Weight returns the round's weight for option id, zero if it has none.
func (r Round) Weight(id int) *uint256.Int {
	if w, ok := r.Tally[id]; ok {
		return w
	}
	return new(uint256.Int)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode Mode
	// Winner is the winning option id or NoWinner.
	Winner int
	// Tied lists the options sharing the top weight when a single-round
	// mode ended without a winner because of a tie.
	Tied   []int
	Rounds []Round
	// Participating is the total weight of non-abstaining ballots.
	Participating *uint256.Int
	// Abstained is the total weight of abstaining ballots.
	Abstained *uint256.Int
	// Threshold is the weight the winner had to exceed, zero for modes
	// decided by relative weight alone.
	Threshold *uint256.Int
}

func (r Resolution) HasWinner() bool {
	return r.Winner != NoWinner
}

// FinalRound returns the last tally round.
func (r Resolution) FinalRound() Round {
	return r.Rounds[len(r.Rounds)-1]
}

func (p Poll) optionIDs() []int {
	ids := make([]int, len(p.Options))
	for i, o := range p.Options {
		ids[i] = o.ID
	}
	slices.Sort(ids)
	return ids
}
