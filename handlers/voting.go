// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/holiman/uint256"

	"github.com/danielhkuo/govpoll/auth"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/middleware"
	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg}
}

// openPoll resolves the slug to a poll that accepts votes. It writes the
// error response itself and returns ok=false on failure.
func (h *VotingHandler) openPoll(w http.ResponseWriter, r *http.Request) (id, format string, ok bool) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return "", "", false
	}

	var status string
	var closesAt sql.NullTime
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, status, input_format, closes_at FROM poll WHERE share_slug = $1
	`, shareSlug).Scan(&id, &status, &format, &closesAt)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return "", "", false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return "", "", false
	}
	if status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return "", "", false
	}
	if closesAt.Valid && !time.Now().Before(closesAt.Time) {
		middleware.ErrorResponse(w, http.StatusConflict, "Voting period has ended")
		return "", "", false
	}
	return id, format, true
}

// ClaimAddress handles POST /polls/:slug/claim-address
func (h *VotingHandler) ClaimAddress(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimAddressRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Address == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "address is required")
		return
	}
	address, err := auth.NormalizeAddress(req.Address)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	pollID, _, ok := h.openPoll(w, r)
	if !ok {
		return
	}

	var weight string
	err = h.db.QueryRowContext(r.Context(), `
		SELECT weight FROM weight_snapshot WHERE poll_id = $1 AND address = $2
	`, pollID, address).Scan(&weight)
	if errors.Is(err, sql.ErrNoRows) {
		weight = "0"
	} else if err != nil {
		slog.Error("failed to query weight", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	voterToken, err := auth.NewVoterToken()
	if err != nil {
		slog.Error("failed to generate voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim address")
		return
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO voter (poll_id, address, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, address, voterToken, time.Now())
	if isUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Address already claimed")
		return
	}
	if err != nil {
		slog.Error("failed to insert voter", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim address")
		return
	}

	slog.Info("address claimed", "poll_id", pollID, "address", address)

	middleware.JSONResponse(w, http.StatusCreated, models.ClaimAddressResponse{
		VoterToken: voterToken,
		Weight:     weight,
	})
}

// voterAddress looks up the address bound to the X-Voter-Token header.
func (h *VotingHandler) voterAddress(w http.ResponseWriter, r *http.Request, pollID string) (string, bool) {
	voterToken := r.Header.Get("X-Voter-Token")
	if voterToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
		return "", false
	}
	if err := auth.CheckVoterToken(voterToken); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return "", false
	}

	var address string
	err := h.db.QueryRowContext(r.Context(), `
		SELECT address FROM voter WHERE poll_id = $1 AND voter_token = $2
	`, pollID, voterToken).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token for this poll")
		return "", false
	}
	if err != nil {
		slog.Error("failed to verify voter token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return "", false
	}
	return address, true
}

// SubmitBallot handles POST /polls/:slug/ballots
// A second submission replaces the first.
func (h *VotingHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pollID, format, ok := h.openPoll(w, r)
	if !ok {
		return
	}
	address, ok := h.voterAddress(w, r, pollID)
	if !ok {
		return
	}

	options, err := loadOptions(r.Context(), h.db, pollID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	valid := make(map[int]bool, len(options))
	for _, o := range options {
		valid[o.ID] = true
	}

	// Same check the resolver applies at close, so a stored ballot can
	// never block closing. Weight is looked up at close time.
	ballot := victory.Ballot{
		Voter:   address,
		Weight:  new(uint256.Int),
		Abstain: req.Abstain,
		Choices: req.Choices,
	}
	if err := victory.ValidateBallot(0, ballot, victory.InputFormat(format), valid); err != nil {
		var mbe *victory.MalformedBallotError
		if errors.As(err, &mbe) {
			middleware.ErrorResponse(w, http.StatusBadRequest, mbe.Reason)
			return
		}
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	voterToken := r.Header.Get("X-Voter-Token")
	newID := auth.NewID()
	now := time.Now()

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if err := lockOpenPoll(r.Context(), tx, pollID); errors.Is(err, errPollNotOpen) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	} else if err != nil {
		slog.Error("failed to lock poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var ballotID string
	err = tx.QueryRowContext(r.Context(), `
		INSERT INTO ballot (id, poll_id, voter_token, address, abstain, submitted_at, ip_hash, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (poll_id, voter_token) DO UPDATE
		SET abstain = excluded.abstain, submitted_at = excluded.submitted_at,
		    ip_hash = excluded.ip_hash, user_agent = excluded.user_agent
		RETURNING id
	`, newID, pollID, voterToken, address, req.Abstain, now, ipHash, r.UserAgent()).Scan(&ballotID)
	if err != nil {
		slog.Error("failed to upsert ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}
	isUpdate := ballotID != newID

	if _, err := tx.ExecContext(r.Context(), `DELETE FROM ballot_choice WHERE ballot_id = $1`, ballotID); err != nil {
		slog.Error("failed to delete old choices", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update ballot")
		return
	}

	for order, optionID := range req.Choices {
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO ballot_choice (ballot_id, pref_order, option_index)
			VALUES ($1, $2, $3)
		`, ballotID, order, optionID)
		if err != nil {
			slog.Error("failed to insert choice", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save choices")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit ballot")
		return
	}

	message, code := "Ballot submitted successfully", http.StatusCreated
	if isUpdate {
		message, code = "Ballot updated successfully", http.StatusOK
	}

	slog.Info("ballot submitted", "poll_id", pollID, "ballot_id", ballotID, "is_update", isUpdate, "abstain", req.Abstain)

	middleware.JSONResponse(w, code, models.SubmitBallotResponse{
		BallotID: ballotID,
		Message:  message,
	})
}

// GetMyBallot handles GET /polls/:slug/my-ballot
// Works on open and closed polls so voters can check what was counted.
func (h *VotingHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	var pollID string
	err := h.db.QueryRowContext(r.Context(), `SELECT id FROM poll WHERE share_slug = $1`, shareSlug).Scan(&pollID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	address, ok := h.voterAddress(w, r, pollID)
	if !ok {
		return
	}

	resp := models.MyBallotResponse{Address: address, Choices: []int{}}
	err = h.db.QueryRowContext(r.Context(), `
		SELECT b.id, b.abstain, b.submitted_at, COALESCE(ws.weight, '0')
		FROM ballot b
		LEFT JOIN weight_snapshot ws ON ws.poll_id = b.poll_id AND ws.address = b.address
		WHERE b.poll_id = $1 AND b.address = $2
	`, pollID, address).Scan(&resp.BallotID, &resp.Abstain, &resp.SubmittedAt, &resp.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ballot submitted yet")
		return
	}
	if err != nil {
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT option_index FROM ballot_choice WHERE ballot_id = $1 ORDER BY pref_order
	`, resp.BallotID)
	if err != nil {
		slog.Error("failed to query choices", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			slog.Error("failed to scan choice", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		resp.Choices = append(resp.Choices, id)
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
