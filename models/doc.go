// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, creator_name, input_format, victory_conditions
  - AddOptionRequest: label
  - SetWeightsRequest: weights (address -> decimal base units)
  - ClaimAddressRequest: address
  - SubmitBallotRequest: choices ([]int), abstain

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, admin_key
  - AddOptionResponse: option_id (0-based, in insertion order)
  - PublishPollResponse: share_slug, share_url
  - ClaimAddressResponse: voter_token, weight
  - SubmitBallotResponse: ballot_id, message
  - ClosePollResponse: closed_at, snapshot
  - ResultsResponse: poll, resolution, inputs_hash, ballot_count
  - AddressStatsResponse: poll_vote_history, last_vote, total_weight
  - ErrorResponse: error, message

# Resolution Types

ResolutionView is the JSON rendering of a victory.Resolution. Weights are
decimal strings so no precision is lost on the way to the client.

# Constants

Status values:

	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"

Input formats and victory conditions are the string values of
victory.InputFormat and victory.Condition.
*/
package models
