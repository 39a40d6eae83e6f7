// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the govpoll API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - PollHandler: Poll lifecycle (create, weights, publish, tally, close)
  - VotingHandler: Address claims and ballot submission
  - ResultsHandler: Poll listing, poll info and sealed results
  - AddressHandler: Vote history of one or more addresses

Handlers are created via constructor functions that accept *sql.DB and Config.
PollHandler also takes the Tallier that resolves ballots:

	tallier := handlers.NewTallier(resolutions, m)
	pollHandler := handlers.NewPollHandler(db, cfg, tallier)

# Poll Lifecycle

Polls progress through three states: draft → open → closed

	POST /polls              → CreatePoll (checks the victory conditions)
	POST /polls/{id}/options → AddOption (draft only, ids 0, 1, 2, ...)
	PUT  /polls/{id}/weights → SetWeights (until closed)
	POST /polls/{id}/publish → PublishPoll (generates share_slug)
	GET  /polls/{id}/tally   → GetLiveTally (resolves without closing)
	POST /polls/{id}/close   → ClosePoll (resolves and stores a snapshot)

Admin operations require the X-Admin-Key header. A poll whose ballots
cannot be resolved is answered with 422 and stays open.

# Voting Flow

Voters interact via the share slug:

	POST /polls/{slug}/claim-address → ClaimAddress (returns voter_token)
	POST /polls/{slug}/ballots       → SubmitBallot (create or replace)
	GET  /polls/{slug}/my-ballot     → GetMyBallot

Voter operations require the X-Voter-Token header. Ballots are checked
against the poll's input format on submission, and the weight is read from
the poll's weight snapshot when the poll is tallied. A poll created with
closes_at refuses ballots once that time has passed; ClosePoll still seals it.
The ballot transaction locks the poll row, so a ballot either lands before
a concurrent close or is refused with 409.

# Tallying

Tallier.Resolve loads the poll and its ballots, ordered by address, and
runs victory.Resolve. Resolutions are cached by the blake3 hash of their
inputs, so repeated tallies of unchanged polls are free.
*/
package handlers
