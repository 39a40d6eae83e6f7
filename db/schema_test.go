// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	return conn
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	conn := openMemory(t)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := CreateSchema(conn); err != nil {
			t.Fatalf("CreateSchema run %d failed: %v", i+1, err)
		}
	}

	for _, table := range Tables {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestSchemaConstraints(t *testing.T) {
	conn := openMemory(t)
	defer conn.Close()

	if err := CreateSchema(conn); err != nil {
		t.Fatal(err)
	}

	_, err := conn.Exec(`
		INSERT INTO poll (id, title, creator_name, input_format, victory_conditions)
		VALUES ('p1', 'T', 'C', 'rank-free', 'instant-runoff')
	`)
	if err != nil {
		t.Fatalf("valid poll rejected: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO poll (id, title, creator_name, input_format, victory_conditions)
		VALUES ('p2', 'T', 'C', 'ranked', 'instant-runoff')
	`)
	if err == nil {
		t.Error("expected unknown input format to be rejected")
	}

	_, err = conn.Exec(`INSERT INTO option (poll_id, option_index, label) VALUES ('p1', 0, 'A')`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO option (poll_id, option_index, label) VALUES ('p1', 0, 'B')`)
	if err == nil {
		t.Error("expected duplicate option index to be rejected")
	}
}

func TestDropSchema(t *testing.T) {
	conn := openMemory(t)
	defer conn.Close()

	if err := CreateSchema(conn); err != nil {
		t.Fatal(err)
	}
	if err := DropSchema(conn); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected no tables after DropSchema, got %d", count)
	}
}
