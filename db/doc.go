// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).

# Tables

  - poll: Poll metadata, input format, victory conditions, lifecycle state
  - option: Options per poll, indexed from 0
  - weight_snapshot: Voting weight per address (decimal base units)
  - voter: Maps addresses to voter tokens
  - ballot: One ballot per voter per poll, possibly abstaining
  - ballot_choice: Chosen option ids, in preference order
  - result_snapshot: Immutable resolutions keyed by inputs hash

# Relationships

	poll 1──* option
	poll 1──* weight_snapshot
	poll 1──* voter
	poll 1──* ballot
	ballot 1──* ballot_choice
	poll 1──* result_snapshot

All foreign keys use ON DELETE CASCADE.
*/
package db
