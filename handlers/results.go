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

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/middleware"
	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// pollBySlug writes a 400, 404 or 500 itself and returns ok=false on failure.
func (h *ResultsHandler) pollBySlug(w http.ResponseWriter, r *http.Request) (models.Poll, bool) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return models.Poll{}, false
	}

	poll, err := getPollBySlug(r.Context(), h.db, shareSlug)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return models.Poll{}, false
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Poll{}, false
	}
	return poll, true
}

func (h *ResultsHandler) countBallots(r *http.Request, pollID string) (int, error) {
	var count int
	err := h.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM ballot WHERE poll_id = $1`, pollID).Scan(&count)
	return count, err
}

// ListPolls handles GET /polls?type=<condition>&status=<open|closed>
// Lists published polls, newest first. type matches the condition the
// poll resolves under, not every condition it declares.
func (h *ResultsHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	condition := victory.Condition(query.Get("type"))
	if condition != "" && !condition.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown type "+string(condition))
		return
	}
	status := query.Get("status")
	switch status {
	case "", models.StatusOpen, models.StatusClosed:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT `+pollColumns+`
		FROM poll
		WHERE status != $1
		ORDER BY created_at DESC
	`, models.StatusDraft)
	if err != nil {
		slog.Error("failed to query polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	now := time.Now()
	polls := []models.Poll{}
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			slog.Error("failed to scan poll", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if condition != "" {
			mode, err := victory.SelectMode(toConditions(poll.VictoryConditions), victory.InputFormat(poll.InputFormat))
			if err != nil || mode.Condition != condition {
				continue
			}
		}
		switch status {
		case models.StatusOpen:
			if poll.Ended(now) {
				continue
			}
		case models.StatusClosed:
			if !poll.Ended(now) {
				continue
			}
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollListResponse{
		Polls: polls,
		Count: len(polls),
	})
}

// GetPoll handles GET /polls/:slug
// Returns poll details and options, but NOT results (results are sealed until closed)
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.pollBySlug(w, r)
	if !ok {
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

// GetResults handles GET /polls/:slug/results
// Returns 403 until the poll is closed, then the stored snapshot.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.pollBySlug(w, r)
	if !ok {
		return
	}

	if poll.Status != models.StatusClosed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are hidden until poll is closed")
		return
	}
	if poll.FinalSnapshotID == nil {
		slog.Error("closed poll has no snapshot", "poll_id", poll.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Results not available")
		return
	}

	var inputsHash string
	var payload []byte
	err := h.db.QueryRowContext(r.Context(), `
		SELECT inputs_hash, payload
		FROM result_snapshot
		WHERE id = $1
	`, *poll.FinalSnapshotID).Scan(&inputsHash, &payload)
	if err != nil {
		slog.Error("failed to query snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var view models.ResolutionView
	if err := json.Unmarshal(payload, &view); err != nil {
		slog.Error("failed to parse snapshot payload", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to parse results")
		return
	}

	ballotCount, err := h.countBallots(r, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots for results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Poll:        poll,
		Resolution:  view,
		InputsHash:  inputsHash,
		BallotCount: ballotCount,
	})
}

// GetBallotCount handles GET /polls/:slug/ballot-count
// Returns the number of ballots submitted (visible even while open)
func (h *ResultsHandler) GetBallotCount(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.pollBySlug(w, r)
	if !ok {
		return
	}

	count, err := h.countBallots(r, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]int{
		"ballot_count": count,
	})
}

// GetPreview handles GET /polls/:slug/preview
// Returns compact poll data for link previews
func (h *ResultsHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.pollBySlug(w, r)
	if !ok {
		return
	}

	var optionCount int
	err := h.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM option WHERE poll_id = $1`, poll.ID).Scan(&optionCount)
	if err != nil {
		slog.Error("failed to count options", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ballotCount, err := h.countBallots(r, poll.ID)
	if err != nil {
		slog.Error("failed to count ballots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.PollPreviewResponse{
		Title:       poll.Title,
		Status:      poll.Status,
		VoteType:    poll.VoteType,
		OptionCount: optionCount,
		BallotCount: ballotCount,
	}
	if poll.ClosedAt != nil {
		resp.ClosedAgo = humanize.Time(*poll.ClosedAt)
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
