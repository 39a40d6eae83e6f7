// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/testutil"
)

// TestConcurrentBallotSubmissions verifies that multiple simultaneous ballot
// submissions from different voters don't cause data corruption or duplicates
func TestConcurrentBallotSubmissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	pollID, _, shareSlug := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Runoff)
	for _, label := range []string{"A", "B", "C"} {
		testutil.AddTestOption(t, db, pollID, label)
	}

	numVoters := 10
	voterTokens := make([]string, numVoters)
	for i := 0; i < numVoters; i++ {
		voterTokens[i] = testutil.CreateTestVoter(t, db, pollID, testutil.Address(i+1))
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			choices := []int{voterIdx % 3, (voterIdx + 1) % 3}
			req := testutil.MakeRequest("POST", "/polls/"+shareSlug+"/ballots",
				models.SubmitBallotRequest{Choices: choices}, voterHeaders(voterTokens[voterIdx]))
			req.SetPathValue("slug", shareSlug)
			w := httptest.NewRecorder()

			votingHandler.SubmitBallot(w, req)

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			} else {
				t.Errorf("Voter %d ballot failed: %d - %s", voterIdx, w.Code, w.Body.String())
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful submissions, got %d", numVoters, successCount.Load())
	}

	var ballotCount, choiceCount int
	db.QueryRow("SELECT COUNT(*) FROM ballot WHERE poll_id = $1", pollID).Scan(&ballotCount)
	db.QueryRow(`
		SELECT COUNT(*) FROM ballot_choice bc JOIN ballot b ON b.id = bc.ballot_id WHERE b.poll_id = $1
	`, pollID).Scan(&choiceCount)

	if ballotCount != numVoters {
		t.Errorf("Expected %d ballots in database, got %d", numVoters, ballotCount)
	}
	if choiceCount != numVoters*2 {
		t.Errorf("Expected %d choices in database, got %d", numVoters*2, choiceCount)
	}
}

// TestConcurrentBallotUpdates verifies that one voter resubmitting in
// parallel still ends up with a single ballot
func TestConcurrentBallotUpdates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	pollID, _, shareSlug := testutil.CreateTestPoll(t, db, cfg, "open")
	testutil.AddTestOption(t, db, pollID, "Yes")
	testutil.AddTestOption(t, db, pollID, "No")
	token := testutil.CreateTestVoter(t, db, pollID, testutil.Address(1))

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/polls/"+shareSlug+"/ballots",
				models.SubmitBallotRequest{Choices: []int{i % 2}}, voterHeaders(token))
			req.SetPathValue("slug", shareSlug)
			w := httptest.NewRecorder()

			votingHandler.SubmitBallot(w, req)

			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusOK:
			default:
				t.Errorf("Submission %d failed: %d - %s", i, w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly one submission to create the ballot, got %d", created.Load())
	}

	var ballots, choices int
	db.QueryRow("SELECT COUNT(*) FROM ballot WHERE poll_id = $1", pollID).Scan(&ballots)
	db.QueryRow(`
		SELECT COUNT(*) FROM ballot_choice bc JOIN ballot b ON b.id = bc.ballot_id WHERE b.poll_id = $1
	`, pollID).Scan(&choices)
	if ballots != 1 || choices != 1 {
		t.Errorf("Expected 1 ballot with 1 choice, got %d ballots and %d choices", ballots, choices)
	}
}

// TestConcurrentAddressClaims verifies that only one voter can claim an address
func TestConcurrentAddressClaims(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	_, _, shareSlug := testutil.CreateTestPoll(t, db, cfg, "open")
	address := testutil.Address(42)

	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	numAttempts := 10

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/polls/"+shareSlug+"/claim-address",
				models.ClaimAddressRequest{Address: address}, nil)
			req.SetPathValue("slug", shareSlug)
			w := httptest.NewRecorder()

			votingHandler.ClaimAddress(w, req)

			switch w.Code {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				t.Errorf("Unexpected status: %d - %s", w.Code, w.Body.String())
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful claim, got %d", successCount.Load())
	}
	if conflictCount.Load() != int32(numAttempts-1) {
		t.Errorf("Expected %d conflicts, got %d", numAttempts-1, conflictCount.Load())
	}
}

// TestConcurrentClose verifies that a poll is resolved and sealed exactly once
func TestConcurrentClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	pollHandler := newTestPollHandler(t, db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, "open")
	yes := testutil.AddTestOption(t, db, pollID, "Yes")
	testutil.AddTestOption(t, db, pollID, "No")
	testutil.SetTestWeight(t, db, pollID, testutil.Address(1), "9")
	token := testutil.CreateTestVoter(t, db, pollID, testutil.Address(1))
	testutil.SubmitTestBallot(t, db, pollID, token, yes)

	var closed, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/polls/"+pollID+"/close", nil, map[string]string{"X-Admin-Key": adminKey})
			req.SetPathValue("id", pollID)
			w := httptest.NewRecorder()

			pollHandler.ClosePoll(w, req)

			switch w.Code {
			case http.StatusOK:
				closed.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected status: %d - %s", w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	if closed.Load() != 1 || conflicts.Load() != 4 {
		t.Errorf("Expected 1 close and 4 conflicts, got %d and %d", closed.Load(), conflicts.Load())
	}

	var snapshots int
	db.QueryRow("SELECT COUNT(*) FROM result_snapshot WHERE poll_id = $1", pollID).Scan(&snapshots)
	if snapshots != 1 {
		t.Errorf("Expected 1 result snapshot, got %d", snapshots)
	}
}

// TestBallotsRacingClose verifies that every accepted ballot is part of the
// stored result, even when submitted while the poll is being closed
func TestBallotsRacingClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	tallier, _ := newTestTallier(t)
	pollHandler := NewPollHandler(db, cfg, tallier)
	votingHandler := NewVotingHandler(db, cfg)

	pollID, adminKey, shareSlug := testutil.CreateTestPoll(t, db, cfg, "open")
	yes := testutil.AddTestOption(t, db, pollID, "Yes")
	testutil.AddTestOption(t, db, pollID, "No")

	numVoters := 12
	tokens := make([]string, numVoters)
	for i := range tokens {
		addr := testutil.Address(i + 1)
		testutil.SetTestWeight(t, db, pollID, addr, "1")
		tokens[i] = testutil.CreateTestVoter(t, db, pollID, addr)
	}

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/polls/"+shareSlug+"/ballots",
				models.SubmitBallotRequest{Choices: []int{yes}}, voterHeaders(tokens[i]))
			req.SetPathValue("slug", shareSlug)
			w := httptest.NewRecorder()

			votingHandler.SubmitBallot(w, req)

			switch w.Code {
			case http.StatusCreated:
				accepted.Add(1)
			case http.StatusConflict:
				rejected.Add(1)
			default:
				t.Errorf("Voter %d: unexpected status %d - %s", i, w.Code, w.Body.String())
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		req := testutil.MakeRequest("POST", "/polls/"+pollID+"/close", nil, map[string]string{"X-Admin-Key": adminKey})
		req.SetPathValue("id", pollID)
		w := httptest.NewRecorder()

		pollHandler.ClosePoll(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Close failed: %d - %s", w.Code, w.Body.String())
		}
	}()

	wg.Wait()

	if int(accepted.Load()+rejected.Load()) != numVoters {
		t.Fatalf("Expected %d answers, got %d accepted and %d rejected", numVoters, accepted.Load(), rejected.Load())
	}

	var stored int
	db.QueryRow("SELECT COUNT(*) FROM ballot WHERE poll_id = $1", pollID).Scan(&stored)
	if stored != int(accepted.Load()) {
		t.Errorf("Expected %d stored ballots, got %d", accepted.Load(), stored)
	}

	// The snapshot must describe exactly the ballots now stored.
	var snapshotHash string
	err := db.QueryRow(`
		SELECT rs.inputs_hash FROM result_snapshot rs JOIN poll p ON p.final_snapshot_id = rs.id WHERE p.id = $1
	`, pollID).Scan(&snapshotHash)
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}
	current, err := tallier.Resolve(context.Background(), db, pollID)
	if err != nil {
		t.Fatal(err)
	}
	if current.InputsHash != snapshotHash {
		t.Error("A ballot accepted after close is missing from the stored result")
	}
}
