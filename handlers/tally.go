// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/holiman/uint256"

	"github.com/danielhkuo/govpoll/cache"
	"github.com/danielhkuo/govpoll/metrics"
	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

// Tallier loads a poll's ballots and resolves them, reusing earlier
// resolutions of identical inputs.
type Tallier struct {
	cache   *cache.Resolutions
	metrics *metrics.Metrics
}

func NewTallier(c *cache.Resolutions, m *metrics.Metrics) *Tallier {
	return &Tallier{cache: c, metrics: m}
}

// Tally is a resolved poll together with the inputs it was computed from.
type Tally struct {
	Poll        victory.Poll
	Resolution  victory.Resolution
	InputsHash  string
	BallotCount int
}

// isResolverError reports whether err means the poll cannot be resolved as
// stored, as opposed to a storage failure.
func isResolverError(err error) bool {
	return errors.Is(err, victory.ErrMalformedBallot) ||
		errors.Is(err, victory.ErrAmbiguousCondition) ||
		errors.Is(err, victory.ErrMalformedPoll)
}

// Resolve tallies the current ballots of pollID. Pass the transaction when
// the result must agree with writes made in it.
func (t *Tallier) Resolve(ctx context.Context, q querier, pollID string) (Tally, error) {
	p, ballots, err := loadInputs(ctx, q, pollID)
	if err != nil {
		return Tally{}, err
	}

	key := cache.Key(p, ballots)
	tally := Tally{Poll: p, InputsHash: key, BallotCount: len(ballots)}

	if res, ok := t.cache.Get(key); ok {
		t.metrics.CacheHit()
		tally.Resolution = res
		return tally, nil
	}
	t.metrics.CacheMiss()

	res, err := victory.Resolve(p, ballots)
	if err != nil {
		t.metrics.ObserveResolution(modeName(p), metrics.OutcomeError, 0)
		return Tally{}, fmt.Errorf("resolve poll %s: %w", pollID, err)
	}

	outcome := metrics.OutcomeNoWinner
	if res.HasWinner() {
		outcome = metrics.OutcomeWinner
	}
	t.metrics.ObserveResolution(res.Mode.String(), outcome, len(res.Rounds))
	t.cache.Add(key, res)

	tally.Resolution = res
	return tally, nil
}

func modeName(p victory.Poll) string {
	mode, err := victory.SelectMode(p.Conditions, p.InputFormat)
	if err != nil {
		return "invalid"
	}
	return mode.String()
}

// loadInputs reads the poll definition and every ballot, ordered by voter
// address. Voters missing from the weight snapshot count with weight zero.
func loadInputs(ctx context.Context, q querier, pollID string) (victory.Poll, []victory.Ballot, error) {
	var format, conditions string
	err := q.QueryRowContext(ctx, `
		SELECT input_format, victory_conditions FROM poll WHERE id = $1
	`, pollID).Scan(&format, &conditions)
	if err != nil {
		return victory.Poll{}, nil, fmt.Errorf("load poll %s: %w", pollID, err)
	}

	options, err := loadOptions(ctx, q, pollID)
	if err != nil {
		return victory.Poll{}, nil, err
	}
	p := victory.Poll{
		ID:          pollID,
		InputFormat: victory.InputFormat(format),
		Conditions:  toConditions(splitConditions(conditions)),
		Options:     make([]victory.Option, len(options)),
	}
	for i, o := range options {
		p.Options[i] = victory.Option{ID: o.ID, Label: o.Label}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT b.id, b.address, b.abstain, COALESCE(ws.weight, '0')
		FROM ballot b
		LEFT JOIN weight_snapshot ws ON ws.poll_id = b.poll_id AND ws.address = b.address
		WHERE b.poll_id = $1
		ORDER BY b.address
	`, pollID)
	if err != nil {
		return victory.Poll{}, nil, fmt.Errorf("query ballots: %w", err)
	}
	defer rows.Close()

	var ballots []victory.Ballot
	index := make(map[string]int)
	for rows.Next() {
		var id, weight string
		var b victory.Ballot
		if err := rows.Scan(&id, &b.Voter, &b.Abstain, &weight); err != nil {
			return victory.Poll{}, nil, fmt.Errorf("scan ballot: %w", err)
		}
		if b.Weight, err = parseWeight(weight); err != nil {
			return victory.Poll{}, nil, fmt.Errorf("stored weight for %s: %w", b.Voter, err)
		}
		index[id] = len(ballots)
		ballots = append(ballots, b)
	}
	if err := rows.Err(); err != nil {
		return victory.Poll{}, nil, err
	}
	rows.Close()

	choices, err := q.QueryContext(ctx, `
		SELECT bc.ballot_id, bc.option_index
		FROM ballot_choice bc
		JOIN ballot b ON b.id = bc.ballot_id
		WHERE b.poll_id = $1
		ORDER BY bc.ballot_id, bc.pref_order
	`, pollID)
	if err != nil {
		return victory.Poll{}, nil, fmt.Errorf("query ballot choices: %w", err)
	}
	defer choices.Close()

	for choices.Next() {
		var ballotID string
		var optionID int
		if err := choices.Scan(&ballotID, &optionID); err != nil {
			return victory.Poll{}, nil, fmt.Errorf("scan ballot choice: %w", err)
		}
		i, ok := index[ballotID]
		if !ok {
			continue
		}
		ballots[i].Choices = append(ballots[i].Choices, optionID)
	}
	return p, ballots, choices.Err()
}

// resolutionView renders res for JSON, labelling options from p.
func resolutionView(p victory.Poll, res victory.Resolution) models.ResolutionView {
	labels := make(map[int]string, len(p.Options))
	for _, o := range p.Options {
		labels[o.ID] = o.Label
	}

	view := models.ResolutionView{
		Mode:          res.Mode.String(),
		VoteType:      res.Mode.Label(),
		Tied:          res.Tied,
		Rounds:        make([]models.RoundView, len(res.Rounds)),
		Participating: formatWeight(res.Participating),
		Abstained:     formatWeight(res.Abstained),
		Threshold:     formatWeight(res.Threshold),
		Summary:       summarize(labels, res),
	}
	if res.HasWinner() {
		winner := res.Winner
		view.Winner = &winner
		view.WinnerLabel = labels[winner]
	}

	for i, r := range res.Rounds {
		ids := make([]int, 0, len(r.Tally))
		for id := range r.Tally {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		rv := models.RoundView{
			Index:         r.Index,
			Tally:         make([]models.OptionWeight, len(ids)),
			Eliminated:    r.Eliminated,
			Participating: formatWeight(r.Participating),
			Exhausted:     formatWeight(r.Exhausted),
		}
		for j, id := range ids {
			rv.Tally[j] = models.OptionWeight{OptionID: id, Label: labels[id], Weight: formatWeight(r.Tally[id])}
		}
		view.Rounds[i] = rv
	}
	return view
}

// summarize describes the outcome in one sentence.
func summarize(labels map[int]string, res victory.Resolution) string {
	final := res.FinalRound()
	if final.Participating.IsZero() {
		return "No weight was cast for any option; there is no winner."
	}

	if len(res.Tied) > 0 {
		names := make([]string, len(res.Tied))
		for i, id := range res.Tied {
			names[i] = labels[id]
		}
		return fmt.Sprintf("%s tied at %s each; there is no winner.",
			joinNames(names), amount(final.Weight(res.Tied[0])))
	}

	if !res.HasWinner() {
		if res.Mode.Condition == victory.InstantRunoff {
			return fmt.Sprintf("No option won a majority after %s; there is no winner.", rounds(len(res.Rounds)))
		}
		leader := topOption(final)
		return fmt.Sprintf("%s led with %s of %s (%s) but did not pass the majority threshold of %s; there is no winner.",
			labels[leader], amount(final.Weight(leader)), amount(final.Participating),
			percent(final.Weight(leader), final.Participating), amount(res.Threshold))
	}

	w := final.Weight(res.Winner)
	s := fmt.Sprintf("%s wins with %s of %s (%s)",
		labels[res.Winner], amount(w), amount(final.Participating), percent(w, final.Participating))
	if len(res.Rounds) > 1 {
		s += " in the " + humanize.Ordinal(len(res.Rounds)) + " round"
	}
	return s + "."
}

func topOption(r victory.Round) int {
	best := victory.NoWinner
	for id, w := range r.Tally {
		if best == victory.NoWinner || w.Gt(r.Tally[best]) || (w.Eq(r.Tally[best]) && id < best) {
			best = id
		}
	}
	return best
}

func amount(w *uint256.Int) string {
	return humanize.BigComma(w.ToBig())
}

func percent(part, total *uint256.Int) string {
	if total.IsZero() {
		return "0%"
	}
	scaled := new(big.Int).Mul(part.ToBig(), big.NewInt(100))
	f, _ := new(big.Rat).SetFrac(scaled, total.ToBig()).Float64()
	return humanize.FtoaWithDigits(f, 1) + "%"
}

func rounds(n int) string {
	if n == 1 {
		return "1 round"
	}
	return humanize.Comma(int64(n)) + " rounds"
}

func joinNames(names []string) string {
	if len(names) <= 2 {
		return strings.Join(names, " and ")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
