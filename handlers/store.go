// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/victory"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

var (
	errInvalidWeight       = errors.New("weight must be a non-negative integer below 2^256")
	errWeightTotalOverflow = errors.New("total weight of the poll must stay below 2^256")
	errPollNotOpen         = errors.New("poll is not open")
)

const pollColumns = `id, title, description, creator_name, input_format, victory_conditions,
	status, share_slug, closes_at, closed_at, final_snapshot_id, created_at`

func scanPoll(row scanner) (models.Poll, error) {
	var p models.Poll
	var conditions string
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.CreatorName, &p.InputFormat, &conditions,
		&p.Status, &p.ShareSlug, &p.ClosesAt, &p.ClosedAt, &p.FinalSnapshotID, &p.CreatedAt,
	)
	if err != nil {
		return models.Poll{}, err
	}
	p.VictoryConditions = splitConditions(conditions)
	if mode, err := victory.SelectMode(toConditions(p.VictoryConditions), victory.InputFormat(p.InputFormat)); err == nil {
		p.VoteType = mode.Label()
	}
	return p, nil
}

func getPollByID(ctx context.Context, q querier, pollID string) (models.Poll, error) {
	return scanPoll(q.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM poll WHERE id = $1`, pollID))
}

func getPollBySlug(ctx context.Context, q querier, slug string) (models.Poll, error) {
	return scanPoll(q.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM poll WHERE share_slug = $1`, slug))
}

func loadOptions(ctx context.Context, q querier, pollID string) ([]models.Option, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT option_index, poll_id, label
		FROM option
		WHERE poll_id = $1
		ORDER BY option_index
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// Conditions are stored comma separated in declaration order.
func joinConditions(conditions []string) string {
	return strings.Join(conditions, ",")
}

func splitConditions(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func toConditions(ss []string) []victory.Condition {
	out := make([]victory.Condition, len(ss))
	for i, s := range ss {
		out[i] = victory.Condition(strings.TrimSpace(s))
	}
	return out
}

// lockOpenPoll write-locks the poll row inside tx and fails with
// errPollNotOpen unless the poll is open. A close running concurrently
// either waits for tx and counts its writes, or commits first and makes
// this fail.
func lockOpenPoll(ctx context.Context, tx querier, pollID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE poll SET status = status WHERE id = $1 AND status = $2
	`, pollID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("lock poll %s: %w", pollID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock poll %s: %w", pollID, err)
	}
	if n == 0 {
		return errPollNotOpen
	}
	return nil
}

// parseWeight reads a decimal amount of base units.
func parseWeight(s string) (*uint256.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() < 0 {
		return nil, errInvalidWeight
	}
	w, overflow := uint256.FromBig(n)
	if overflow {
		return nil, errInvalidWeight
	}
	return w, nil
}

// checkWeightTotal sums the poll's weight snapshot and fails with
// errWeightTotalOverflow if it does not fit in 256 bits.
func checkWeightTotal(ctx context.Context, q querier, pollID string) error {
	rows, err := q.QueryContext(ctx, `SELECT weight FROM weight_snapshot WHERE poll_id = $1`, pollID)
	if err != nil {
		return fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	total := new(uint256.Int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan weight: %w", err)
		}
		wt, err := parseWeight(raw)
		if err != nil {
			return fmt.Errorf("stored weight %q: %w", raw, err)
		}
		if _, overflow := total.AddOverflow(total, wt); overflow {
			return errWeightTotalOverflow
		}
	}
	return rows.Err()
}

func formatWeight(w *uint256.Int) string {
	if w == nil {
		return "0"
	}
	return w.ToBig().String()
}

// isUniqueViolation matches duplicate key errors from PostgreSQL and SQLite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
