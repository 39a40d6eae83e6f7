package models

import "time"

// Poll status constants
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Request types

type CreatePollRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CreatorName       string   `json:"creator_name"`
	InputFormat       string   `json:"input_format"`
	VictoryConditions []string `json:"victory_conditions"`
	// ClosesAt ends voting once passed; nil leaves the poll open until closed.
	ClosesAt *time.Time `json:"closes_at,omitempty"`
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

// address -> weight in base units, as a decimal string
type SetWeightsRequest struct {
	Weights map[string]string `json:"weights"`
}

type ClaimAddressRequest struct {
	Address string `json:"address"`
}

// Choices are option ids: one for single-choice polls, a set for
// choose-free polls, most preferred first for rank-free polls.
type SubmitBallotRequest struct {
	Choices []int `json:"choices"`
	Abstain bool  `json:"abstain"`
}

// Response types

type CreatePollResponse struct {
	PollID   string `json:"poll_id"`
	AdminKey string `json:"admin_key"`
}

type AddOptionResponse struct {
	OptionID int `json:"option_id"`
}

type SetWeightsResponse struct {
	Updated int `json:"updated"`
}

type PublishPollResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type ClaimAddressResponse struct {
	VoterToken string `json:"voter_token"`
	Weight     string `json:"weight"`
}

type SubmitBallotResponse struct {
	BallotID string `json:"ballot_id"`
	Message  string `json:"message"`
}

type MyBallotResponse struct {
	BallotID    string    `json:"ballot_id"`
	Address     string    `json:"address"`
	Choices     []int     `json:"choices"`
	Abstain     bool      `json:"abstain"`
	Weight      string    `json:"weight"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type ClosePollResponse struct {
	ClosedAt time.Time      `json:"closed_at"`
	Snapshot ResultSnapshot `json:"snapshot"`
}

type ResultsResponse struct {
	Poll        Poll           `json:"poll"`
	Resolution  ResolutionView `json:"resolution"`
	InputsHash  string         `json:"inputs_hash"`
	BallotCount int            `json:"ballot_count"`
}

type PollPreviewResponse struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	VoteType    string `json:"vote_type"`
	OptionCount int    `json:"option_count"`
	BallotCount int    `json:"ballot_count"`
	ClosedAgo   string `json:"closed_ago,omitempty"`
}

type PollListResponse struct {
	Polls []Poll `json:"polls"`
	Count int    `json:"count"`
}

type AddressStatsResponse struct {
	Address         string        `json:"address,omitempty"`
	Addresses       []string      `json:"addresses,omitempty"`
	PollVoteHistory []VoteHistory `json:"poll_vote_history"`
	LastVote        *VoteHistory  `json:"last_vote,omitempty"`
	TotalWeight     string        `json:"total_weight"`
}

// Domain types

type Poll struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	CreatorName       string     `json:"creator_name"`
	InputFormat       string     `json:"input_format"`
	VictoryConditions []string   `json:"victory_conditions"`
	VoteType          string     `json:"vote_type"`
	Status            string     `json:"status"`
	ShareSlug         *string    `json:"share_slug,omitempty"`
	ClosesAt          *time.Time `json:"closes_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	FinalSnapshotID   *string    `json:"final_snapshot_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Ended reports whether voting is over at now, by close or by deadline.
func (p Poll) Ended(now time.Time) bool {
	if p.Status == StatusClosed {
		return true
	}
	return p.ClosesAt != nil && !now.Before(*p.ClosesAt)
}

type Option struct {
	ID     int    `json:"id"`
	PollID string `json:"poll_id"`
	Label  string `json:"label"`
}

type PollWithOptions struct {
	Poll    Poll     `json:"poll"`
	Options []Option `json:"options"`
}

type VoteHistory struct {
	Address     string    `json:"address"`
	PollID      string    `json:"poll_id"`
	PollTitle   string    `json:"poll_title"`
	VoteType    string    `json:"vote_type"`
	SubmittedAt time.Time `json:"submitted_at"`
	Abstain     bool      `json:"abstain"`
	Ballot      []int     `json:"ballot"`
	OptionValue []string  `json:"option_value"`
	Weight      string    `json:"weight"`
}

// Resolution types

type OptionWeight struct {
	OptionID int    `json:"option_id"`
	Label    string `json:"label"`
	Weight   string `json:"weight"`
}

type RoundView struct {
	Index         int            `json:"index"`
	Tally         []OptionWeight `json:"tally"`
	Eliminated    []int          `json:"eliminated"`
	Participating string         `json:"participating"`
	Exhausted     string         `json:"exhausted"`
}

type ResolutionView struct {
	Mode          string      `json:"mode"`
	VoteType      string      `json:"vote_type"`
	Winner        *int        `json:"winner"`
	WinnerLabel   string      `json:"winner_label,omitempty"`
	Tied          []int       `json:"tied,omitempty"`
	Rounds        []RoundView `json:"rounds"`
	Participating string      `json:"participating"`
	Abstained     string      `json:"abstained"`
	Threshold     string      `json:"threshold"`
	Summary       string      `json:"summary"`
}

type ResultSnapshot struct {
	ID         string         `json:"id"`
	PollID     string         `json:"poll_id"`
	Mode       string         `json:"mode"`
	ComputedAt time.Time      `json:"computed_at"`
	InputsHash string         `json:"inputs_hash"` // blake3 of the poll definition and every ballot
	Resolution ResolutionView `json:"resolution"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
