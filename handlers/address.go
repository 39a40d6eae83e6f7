// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/govpoll/auth"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/middleware"
	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

type AddressHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAddressHandler(db *sql.DB, cfg cliparse.Config) *AddressHandler {
	return &AddressHandler{db: db, cfg: cfg}
}

type historyRow struct {
	ballotID string
	mode     victory.Condition
	vote     models.VoteHistory
}

type choiceRow struct {
	optionID int
	label    string
}

// maxStatsAddresses bounds the fan-out of one stats request.
const maxStatsAddresses = 50

// GetStats handles GET /address/:address/stats
// Returns every ballot the address cast, newest first. ?type= keeps only
// polls whose effective mode is that victory condition.
func (h *AddressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	address, err := auth.NormalizeAddress(r.PathValue("address"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeStats(w, r, []string{address})
}

// GetStatsMulti handles GET /address/stats?address=a&address=b
// Addresses may repeat the parameter or be comma separated. Histories
// are merged into one list, newest first.
func (h *AddressHandler) GetStatsMulti(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	var addresses []string
	for _, param := range r.URL.Query()["address"] {
		for _, raw := range strings.Split(param, ",") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			address, err := auth.NormalizeAddress(raw)
			if err != nil {
				middleware.ErrorResponse(w, http.StatusBadRequest, raw+": "+err.Error())
				return
			}
			if !seen[address] {
				seen[address] = true
				addresses = append(addresses, address)
			}
		}
	}
	if len(addresses) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "address is required")
		return
	}
	if len(addresses) > maxStatsAddresses {
		middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("at most %d addresses per request", maxStatsAddresses))
		return
	}
	h.writeStats(w, r, addresses)
}

func (h *AddressHandler) writeStats(w http.ResponseWriter, r *http.Request, addresses []string) {
	filter := victory.Condition(r.URL.Query().Get("type"))
	if filter != "" && !filter.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown vote type %q", filter))
		return
	}

	histories := make([][]historyRow, len(addresses))
	choices := make([]map[string][]choiceRow, len(addresses))

	g, ctx := errgroup.WithContext(r.Context())
	for i, address := range addresses {
		g.Go(func() error {
			var err error
			if histories[i], err = h.queryHistory(ctx, address); err != nil {
				return err
			}
			choices[i], err = h.queryChoices(ctx, address)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("failed to query address stats", "error", err, "addresses", addresses)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.AddressStatsResponse{PollVoteHistory: []models.VoteHistory{}}
	if len(addresses) == 1 {
		resp.Address = addresses[0]
	} else {
		resp.Addresses = addresses
	}
	total := new(big.Int)
	for i, history := range histories {
		for _, row := range history {
			if filter != "" && row.mode != filter {
				continue
			}
			vote := row.vote
			vote.Ballot = []int{}
			vote.OptionValue = []string{}
			for _, c := range choices[i][row.ballotID] {
				vote.Ballot = append(vote.Ballot, c.optionID)
				vote.OptionValue = append(vote.OptionValue, c.label)
			}
			if wt, ok := new(big.Int).SetString(vote.Weight, 10); ok {
				total.Add(total, wt)
			}
			resp.PollVoteHistory = append(resp.PollVoteHistory, vote)
		}
	}
	sort.SliceStable(resp.PollVoteHistory, func(a, b int) bool {
		return resp.PollVoteHistory[a].SubmittedAt.After(resp.PollVoteHistory[b].SubmittedAt)
	})
	if len(resp.PollVoteHistory) > 0 {
		last := resp.PollVoteHistory[0]
		resp.LastVote = &last
	}
	resp.TotalWeight = total.String()

	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (h *AddressHandler) queryHistory(ctx context.Context, address string) ([]historyRow, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT b.id, p.id, p.title, p.input_format, p.victory_conditions,
		       b.submitted_at, b.abstain, COALESCE(ws.weight, '0')
		FROM ballot b
		JOIN poll p ON p.id = b.poll_id
		LEFT JOIN weight_snapshot ws ON ws.poll_id = b.poll_id AND ws.address = b.address
		WHERE b.address = $1
		ORDER BY b.submitted_at DESC, b.id
	`, address)
	if err != nil {
		return nil, fmt.Errorf("query vote history: %w", err)
	}
	defer rows.Close()

	var out []historyRow
	for rows.Next() {
		var row historyRow
		var format, conditions string
		err := rows.Scan(
			&row.ballotID, &row.vote.PollID, &row.vote.PollTitle, &format, &conditions,
			&row.vote.SubmittedAt, &row.vote.Abstain, &row.vote.Weight,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vote history: %w", err)
		}
		row.vote.Address = address
		if mode, err := victory.SelectMode(toConditions(splitConditions(conditions)), victory.InputFormat(format)); err == nil {
			row.mode = mode.Condition
			row.vote.VoteType = mode.Label()
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (h *AddressHandler) queryChoices(ctx context.Context, address string) (map[string][]choiceRow, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT bc.ballot_id, bc.option_index, o.label
		FROM ballot_choice bc
		JOIN ballot b ON b.id = bc.ballot_id
		JOIN option o ON o.poll_id = b.poll_id AND o.option_index = bc.option_index
		WHERE b.address = $1
		ORDER BY bc.ballot_id, bc.pref_order
	`, address)
	if err != nil {
		return nil, fmt.Errorf("query ballot choices: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]choiceRow)
	for rows.Next() {
		var ballotID string
		var c choiceRow
		if err := rows.Scan(&ballotID, &c.optionID, &c.label); err != nil {
			return nil, fmt.Errorf("scan ballot choice: %w", err)
		}
		out[ballotID] = append(out[ballotID], c)
	}
	return out, rows.Err()
}
