// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package victory resolves the winner of a weighted governance poll.

# Resolution

Resolve takes a poll definition and its weighted ballots and returns the
winning option (if any) together with every tally round:

	res, err := victory.Resolve(poll, ballots)
	if err != nil {
		// *MalformedBallotError, *AmbiguousVictoryConditionError or ErrMalformedPoll
	}
	if res.HasWinner() {
		fmt.Println(poll.Options[res.Winner].Label)
	}

Resolve is a pure function. It never mutates its inputs and holds no state,
so it is safe to call from any number of goroutines.

# Modes

A poll may declare several victory conditions. Exactly one mode drives
resolution, chosen by fixed precedence:

	InstantRunoff > Plurality > Approval > Majority

Declaring Majority next to Approval turns on the approval majority
threshold: the approval winner must also hold more than half of the
participating weight.

  - Plurality: single round, strictly greatest weight wins, ties have no winner.
  - Approval: single round, every approved option receives the ballot's full
    weight. Weight is never split between the options of one ballot.
  - Majority: single round, winner needs more than half of the participating weight.
  - InstantRunoff: repeated rounds over ranked ballots. Each round counts the
    top remaining preference; an option above half of that round's
    participating weight wins, otherwise every option tied at the minimum is
    eliminated and its ballots move to their next preference.

# Weights

Weights are 256-bit unsigned integers in base units (for example wei).
Thresholds are exact: "more than half" is w > floor(total/2), which is the
same as 2w > total.

# Abstain

An abstaining ballot carries no choices. Its weight is reported in
Resolution.Abstained but is excluded from every threshold denominator.
*/
package victory
