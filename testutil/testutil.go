// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provides fixtures for handler and router tests.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/govpoll/auth"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/db"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                3318,
		DatabaseURL:         ":memory:",
		DatabaseType:        "sqlite",
		AdminKeySalt:        "test-admin-salt",
		PollSlugSalt:        "test-slug-salt",
		PublicBaseURL:       "https://vote.example.org",
		ResolutionCacheSize: 16,
	}
}

// PollSpec describes the victory rules of a test poll.
type PollSpec struct {
	InputFormat string
	Conditions  string // comma separated
}

var (
	Plurality = PollSpec{"single-choice", "plurality"}
	Approval  = PollSpec{"choose-free", "approval"}
	Runoff    = PollSpec{"rank-free", "instant-runoff"}
)

// CreateTestPoll creates a poll in the database and returns its ID and admin key
// status should be "draft", "open", or "closed"
func CreateTestPoll(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string) (pollID, adminKey, shareSlug string) {
	t.Helper()
	return CreateTestPollWith(t, conn, cfg, status, Plurality)
}

// CreateTestPollWith is CreateTestPoll with explicit victory rules.
func CreateTestPollWith(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string, spec PollSpec) (pollID, adminKey, shareSlug string) {
	t.Helper()

	pollID = auth.NewID()
	adminKey = auth.AdminKey(pollID, cfg.AdminKeySalt)

	var slug *string
	if status == "open" || status == "closed" {
		s := auth.ShareSlug(pollID, cfg.PollSlugSalt)
		slug = &s
		shareSlug = s
	}

	var closedAt *time.Time
	if status == "closed" {
		now := time.Now()
		closedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO poll (id, title, description, creator_name, input_format, victory_conditions, status, share_slug, closed_at, created_at)
		VALUES ($1, 'Test Poll', 'A test poll', 'TestUser', $2, $3, $4, $5, $6, $7)
	`, pollID, spec.InputFormat, spec.Conditions, status, slug, closedAt, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, adminKey, shareSlug
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID, label string) int {
	t.Helper()

	var optionID int
	err := conn.QueryRow(`SELECT COUNT(*) FROM option WHERE poll_id = $1`, pollID).Scan(&optionID)
	if err != nil {
		t.Fatalf("Failed to count options: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO option (poll_id, option_index, label)
		VALUES ($1, $2, $3)
	`, pollID, optionID, label)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// Address returns a distinct valid address for index i.
func Address(i int) string {
	const hexDigits = "0123456789abcdef"
	b := []byte("0x0000000000000000000000000000000000000000")
	for pos := len(b) - 1; i > 0 && pos >= 2; pos-- {
		b[pos] = hexDigits[i%16]
		i /= 16
	}
	return string(b)
}

// SetTestWeight stores the weight snapshot entry of an address.
func SetTestWeight(t *testing.T, conn *sql.DB, pollID, address, weight string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO weight_snapshot (poll_id, address, weight, updated_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, address, weight, time.Now())
	if err != nil {
		t.Fatalf("Failed to set test weight: %v", err)
	}
}

// CreateTestVoter claims an address for a poll and returns the voter token
func CreateTestVoter(t *testing.T, conn *sql.DB, pollID, address string) string {
	t.Helper()

	voterToken, err := auth.NewVoterToken()
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`
		INSERT INTO voter (poll_id, address, voter_token, created_at)
		VALUES ($1, $2, $3, $4)
	`, pollID, address, voterToken, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voterToken
}

// SubmitTestBallot stores a ballot for a claimed address. No choices means
// an abstaining ballot.
func SubmitTestBallot(t *testing.T, conn *sql.DB, pollID, voterToken string, choices ...int) string {
	t.Helper()

	var address string
	err := conn.QueryRow(`SELECT address FROM voter WHERE poll_id = $1 AND voter_token = $2`, pollID, voterToken).Scan(&address)
	if err != nil {
		t.Fatalf("Unknown test voter: %v", err)
	}

	ballotID := auth.NewID()
	_, err = conn.Exec(`
		INSERT INTO ballot (id, poll_id, voter_token, address, abstain, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ballotID, pollID, voterToken, address, len(choices) == 0, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	for order, optionID := range choices {
		_, err := conn.Exec(`
			INSERT INTO ballot_choice (ballot_id, pref_order, option_index)
			VALUES ($1, $2, $3)
		`, ballotID, order, optionID)
		if err != nil {
			t.Fatalf("Failed to create test choice: %v", err)
		}
	}

	return ballotID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
