// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/govpoll/auth"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/middleware"
	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

type PollHandler struct {
	db      *sql.DB
	cfg     cliparse.Config
	tallier *Tallier
}

func NewPollHandler(db *sql.DB, cfg cliparse.Config, tallier *Tallier) *PollHandler {
	return &PollHandler{db: db, cfg: cfg, tallier: tallier}
}

// authorize checks the admin key for the poll in the path. It writes the
// error response itself and returns "" on failure.
func (h *PollHandler) authorize(w http.ResponseWriter, r *http.Request) string {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return ""
	}
	if err := auth.CheckAdminKey(pollID, r.Header.Get("X-Admin-Key"), h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return ""
	}
	return pollID
}

// pollStatus returns the poll's status, writing a 404 or 500 on failure.
func (h *PollHandler) pollStatus(w http.ResponseWriter, r *http.Request, pollID string) (string, bool) {
	var status string
	err := h.db.QueryRowContext(r.Context(), "SELECT status FROM poll WHERE id = $1", pollID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return "", false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return "", false
	}
	return status, true
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CreatorName == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "creator_name is required")
		return
	}

	if req.ClosesAt != nil {
		if !req.ClosesAt.After(time.Now()) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "closes_at must be in the future")
			return
		}
		closesAt := req.ClosesAt.UTC()
		req.ClosesAt = &closesAt
	}

	// The conditions must resolve to one mode before the poll can exist.
	mode, err := victory.SelectMode(toConditions(req.VictoryConditions), victory.InputFormat(req.InputFormat))
	if errors.Is(err, victory.ErrMalformedPoll) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	pollID := auth.NewID()
	adminKey := auth.AdminKey(pollID, h.cfg.AdminKeySalt)

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO poll (id, title, description, creator_name, input_format, victory_conditions, status, closes_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, pollID, req.Title, req.Description, req.CreatorName, req.InputFormat,
		joinConditions(req.VictoryConditions), models.StatusDraft, req.ClosesAt, time.Now())
	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", pollID, "creator", req.CreatorName, "mode", mode.String())

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   pollID,
		AdminKey: adminKey,
	})
}

// AddOption handles POST /polls/:id/options
// Option ids are assigned 0, 1, 2, ... in insertion order.
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Label == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "label is required")
		return
	}

	status, ok := h.pollStatus(w, r, pollID)
	if !ok {
		return
	}
	if status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot add options to non-draft poll")
		return
	}

	var optionID int
	err := h.db.QueryRowContext(r.Context(), `
		INSERT INTO option (poll_id, option_index, label)
		SELECT CAST($1 AS TEXT), COALESCE(MAX(option_index) + 1, 0), CAST($2 AS TEXT)
		FROM option
		WHERE poll_id = $1
		RETURNING option_index
	`, pollID, req.Label).Scan(&optionID)
	if isUniqueViolation(err) {
		middleware.ErrorResponse(w, http.StatusConflict, "Concurrent option insert, retry")
		return
	}
	if err != nil {
		slog.Error("failed to insert option", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create option")
		return
	}

	slog.Info("option added", "poll_id", pollID, "option_id", optionID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddOptionResponse{
		OptionID: optionID,
	})
}

// SetWeights handles PUT /polls/:id/weights
// Entries are upserted; addresses not listed keep their weight.
func (h *PollHandler) SetWeights(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	var req models.SetWeightsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Weights) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "weights cannot be empty")
		return
	}

	// Validate everything before writing anything.
	weights := make(map[string]string, len(req.Weights))
	for raw, amount := range req.Weights {
		addr, err := auth.NormalizeAddress(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, raw+": "+err.Error())
			return
		}
		wt, err := parseWeight(amount)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, raw+": "+err.Error())
			return
		}
		if _, dup := weights[addr]; dup {
			middleware.ErrorResponse(w, http.StatusBadRequest, "duplicate address "+addr)
			return
		}
		weights[addr] = formatWeight(wt)
	}

	status, ok := h.pollStatus(w, r, pollID)
	if !ok {
		return
	}
	if status == models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusConflict, "Weights are frozen once the poll is closed")
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	now := time.Now()
	for addr, amount := range weights {
		_, err := tx.ExecContext(r.Context(), `
			INSERT INTO weight_snapshot (poll_id, address, weight, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (poll_id, address) DO UPDATE
			SET weight = excluded.weight, updated_at = excluded.updated_at
		`, pollID, addr, amount, now)
		if err != nil {
			slog.Error("failed to upsert weight", "error", err, "poll_id", pollID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save weights")
			return
		}
	}

	// The snapshot total bounds every tally of the poll.
	if err := checkWeightTotal(r.Context(), tx, pollID); errors.Is(err, errWeightTotalOverflow) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	} else if err != nil {
		slog.Error("failed to sum weights", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save weights")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save weights")
		return
	}

	slog.Info("weights updated", "poll_id", pollID, "count", len(weights))

	middleware.JSONResponse(w, http.StatusOK, models.SetWeightsResponse{Updated: len(weights)})
}

// PublishPoll handles POST /polls/:id/publish
func (h *PollHandler) PublishPoll(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	var status string
	var optionCount int
	err := h.db.QueryRowContext(r.Context(), `
		SELECT p.status, COUNT(o.option_index)
		FROM poll p
		LEFT JOIN option o ON p.id = o.poll_id
		WHERE p.id = $1
		GROUP BY p.status
	`, pollID).Scan(&status, &optionCount)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if status != models.StatusDraft {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in draft status")
		return
	}
	if optionCount < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Poll must have at least 2 options")
		return
	}

	shareSlug := auth.ShareSlug(pollID, h.cfg.PollSlugSalt)

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE poll
		SET status = $1, share_slug = $2
		WHERE id = $3 AND status = $4
	`, models.StatusOpen, shareSlug, pollID, models.StatusDraft)
	if err != nil {
		slog.Error("failed to publish poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish poll")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in draft status")
		return
	}

	slog.Info("poll published", "poll_id", pollID, "share_slug", shareSlug)

	middleware.JSONResponse(w, http.StatusOK, models.PublishPollResponse{
		ShareSlug: shareSlug,
		ShareURL:  h.cfg.ShareURL(shareSlug),
	})
}

// GetPollAdmin handles GET /polls/:id/admin
// Returns poll details for admin access using poll ID and admin key
func (h *PollHandler) GetPollAdmin(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	poll, err := getPollByID(r.Context(), h.db, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	options, err := loadOptions(r.Context(), h.db, poll.ID)
	if err != nil {
		slog.Error("failed to query options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{
		Poll:    poll,
		Options: options,
	})
}

// GetLiveTally handles GET /polls/:id/tally
// Resolves the ballots cast so far. Only the admin sees this before close.
func (h *PollHandler) GetLiveTally(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	poll, err := getPollByID(r.Context(), h.db, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	tally, err := h.tallier.Resolve(r.Context(), h.db, pollID)
	if isResolverError(err) {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to tally poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to tally poll")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Poll:        poll,
		Resolution:  resolutionView(tally.Poll, tally.Resolution),
		InputsHash:  tally.InputsHash,
		BallotCount: tally.BallotCount,
	})
}

// ClosePoll handles POST /polls/:id/close
// Closing, resolving and storing the snapshot happen in one transaction; a
// poll that cannot be resolved stays open.
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID := h.authorize(w, r)
	if pollID == "" {
		return
	}

	status, ok := h.pollStatus(w, r, pollID)
	if !ok {
		return
	}
	if status != models.StatusOpen {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	}

	ctx := r.Context()
	snapshotID := auth.NewID()
	closedAt := time.Now()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE poll
		SET status = $1, closed_at = $2, final_snapshot_id = $3
		WHERE id = $4 AND status = $5
	`, models.StatusClosed, closedAt, snapshotID, pollID, models.StatusOpen)
	if err != nil {
		slog.Error("failed to close poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	}

	tally, err := h.tallier.Resolve(ctx, tx, pollID)
	if isResolverError(err) {
		slog.Warn("poll cannot be resolved", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to tally poll", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	view := resolutionView(tally.Poll, tally.Resolution)
	payload, err := json.Marshal(view)
	if err != nil {
		slog.Error("failed to encode snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save results")
		return
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO result_snapshot (id, poll_id, mode, inputs_hash, computed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snapshotID, pollID, view.Mode, tally.InputsHash, closedAt, string(payload))
	if err != nil {
		slog.Error("failed to insert snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save results")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}

	slog.Info("poll closed",
		"poll_id", pollID,
		"snapshot_id", snapshotID,
		"mode", view.Mode,
		"has_winner", tally.Resolution.HasWinner(),
	)

	middleware.JSONResponse(w, http.StatusOK, models.ClosePollResponse{
		ClosedAt: closedAt,
		Snapshot: models.ResultSnapshot{
			ID:         snapshotID,
			PollID:     pollID,
			Mode:       view.Mode,
			ComputedAt: closedAt,
			InputsHash: tally.InputsHash,
			Resolution: view,
		},
	})
}
