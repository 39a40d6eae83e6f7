// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Tables lists every table in dependency order (children last).
var Tables = []string{
	"poll",
	"option",
	"weight_snapshot",
	"voter",
	"ballot",
	"ballot_choice",
	"result_snapshot",
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The statements are executed one at a time since not every driver
// accepts several statements in one Exec.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// DropSchema removes every table. Used by tests to start clean.
func DropSchema(db *sql.DB) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + Tables[i]); err != nil {
			return fmt.Errorf("failed to drop %s: %w", Tables[i], err)
		}
	}
	return nil
}

const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    creator_name TEXT NOT NULL,
    input_format TEXT NOT NULL CHECK (input_format IN ('single-choice', 'choose-free', 'rank-free')),
    victory_conditions TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'open', 'closed')),
    share_slug TEXT UNIQUE,
    closes_at TIMESTAMP,
    closed_at TIMESTAMP,
    final_snapshot_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_poll_share_slug ON poll(share_slug);
CREATE INDEX IF NOT EXISTS idx_poll_status ON poll(status);

-- Options, numbered from 0 within a poll
CREATE TABLE IF NOT EXISTS option (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    option_index INTEGER NOT NULL CHECK (option_index >= 0),
    label TEXT NOT NULL,
    PRIMARY KEY (poll_id, option_index)
);

-- Voting weight per address, in base units
CREATE TABLE IF NOT EXISTS weight_snapshot (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    address TEXT NOT NULL,
    weight TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, address)
);

-- Voters
CREATE TABLE IF NOT EXISTS voter (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    address TEXT NOT NULL,
    voter_token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, voter_token),
    UNIQUE (poll_id, address)
);

CREATE INDEX IF NOT EXISTS idx_voter_poll_id ON voter(poll_id);

-- Ballots
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    voter_token TEXT NOT NULL,
    address TEXT NOT NULL,
    abstain BOOLEAN NOT NULL DEFAULT FALSE,
    submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ip_hash TEXT,
    user_agent TEXT,
    UNIQUE (poll_id, voter_token)
);

CREATE INDEX IF NOT EXISTS idx_ballot_poll_id ON ballot(poll_id);
CREATE INDEX IF NOT EXISTS idx_ballot_address ON ballot(address);

-- Ballot choices, pref_order 0 is the first choice
CREATE TABLE IF NOT EXISTS ballot_choice (
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    pref_order INTEGER NOT NULL,
    option_index INTEGER NOT NULL,
    PRIMARY KEY (ballot_id, pref_order)
);

-- Result Snapshots
CREATE TABLE IF NOT EXISTS result_snapshot (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    mode TEXT NOT NULL,
    inputs_hash TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    payload JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_snapshot_poll_id ON result_snapshot(poll_id);
`
