// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/govpoll/models"
	"github.com/danielhkuo/govpoll/testutil"
)

func TestGetPoll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg)

	pollID, _, shareSlug := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Approval)
	testutil.AddTestOption(t, db, pollID, "A")
	testutil.AddTestOption(t, db, pollID, "B")

	tests := []struct {
		name           string
		slug           string
		expectedStatus int
	}{
		{"existing poll", shareSlug, http.StatusOK},
		{"unknown slug", "missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/polls/"+tt.slug, nil, nil)
			req.SetPathValue("slug", tt.slug)
			w := httptest.NewRecorder()

			handler.GetPoll(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if w.Code != http.StatusOK {
				return
			}
			var resp models.PollWithOptions
			testutil.AssertJSON(t, w, &resp)
			if resp.Poll.ID != pollID || len(resp.Options) != 2 {
				t.Errorf("Unexpected poll %+v", resp)
			}
			if resp.Poll.VoteType != "Approval poll" {
				t.Errorf("Expected approval vote type, got %q", resp.Poll.VoteType)
			}
		})
	}
}

func TestGetResultsSealedUntilClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg)

	_, _, shareSlug := testutil.CreateTestPoll(t, db, cfg, "open")

	req := testutil.MakeRequest("GET", "/polls/"+shareSlug+"/results", nil, nil)
	req.SetPathValue("slug", shareSlug)
	w := httptest.NewRecorder()

	handler.GetResults(w, req)

	testutil.AssertStatus(t, w, http.StatusForbidden)
}

func TestGetResultsAfterClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	pollHandler := newTestPollHandler(t, db, cfg)
	handler := NewResultsHandler(db, cfg)

	pollID, adminKey, shareSlug := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Approval)
	a := testutil.AddTestOption(t, db, pollID, "A")
	b := testutil.AddTestOption(t, db, pollID, "B")
	c := testutil.AddTestOption(t, db, pollID, "C")

	ballots := []struct {
		weight  string
		choices []int
	}{
		{"30", []int{a, b}},
		{"25", []int{b}},
		{"20", []int{c, a}},
		{"5", nil},
	}
	for i, bl := range ballots {
		addr := testutil.Address(i + 1)
		testutil.SetTestWeight(t, db, pollID, addr, bl.weight)
		token := testutil.CreateTestVoter(t, db, pollID, addr)
		testutil.SubmitTestBallot(t, db, pollID, token, bl.choices...)
	}

	closeReq := testutil.MakeRequest("POST", "/polls/"+pollID+"/close", nil, map[string]string{"X-Admin-Key": adminKey})
	closeReq.SetPathValue("id", pollID)
	cw := httptest.NewRecorder()
	pollHandler.ClosePoll(cw, closeReq)
	testutil.AssertStatus(t, cw, http.StatusOK)

	req := testutil.MakeRequest("GET", "/polls/"+shareSlug+"/results", nil, nil)
	req.SetPathValue("slug", shareSlug)
	w := httptest.NewRecorder()

	handler.GetResults(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ResultsResponse
	testutil.AssertJSON(t, w, &resp)

	// A: 30+20, B: 30+25, C: 20
	res := resp.Resolution
	if res.Winner == nil || *res.Winner != b {
		t.Fatalf("Expected B to win, got %+v", res)
	}
	if res.Abstained != "5" || res.Participating != "75" {
		t.Errorf("Expected 75 participating and 5 abstained, got %s and %s", res.Participating, res.Abstained)
	}
	if len(res.Rounds) != 1 || len(res.Rounds[0].Tally) != 3 || res.Rounds[0].Tally[a].Weight != "50" {
		t.Errorf("Unexpected rounds %+v", res.Rounds)
	}
	if resp.BallotCount != 4 || resp.InputsHash == "" {
		t.Errorf("Unexpected ballot count %d or hash %q", resp.BallotCount, resp.InputsHash)
	}
	if resp.Poll.Status != models.StatusClosed {
		t.Errorf("Expected closed poll, got %s", resp.Poll.Status)
	}
}

func TestGetBallotCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg)

	pollID, _, shareSlug := testutil.CreateTestPoll(t, db, cfg, "open")
	opt := testutil.AddTestOption(t, db, pollID, "A")
	for i := 1; i <= 3; i++ {
		token := testutil.CreateTestVoter(t, db, pollID, testutil.Address(i))
		testutil.SubmitTestBallot(t, db, pollID, token, opt)
	}

	req := testutil.MakeRequest("GET", "/polls/"+shareSlug+"/ballot-count", nil, nil)
	req.SetPathValue("slug", shareSlug)
	w := httptest.NewRecorder()

	handler.GetBallotCount(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp map[string]int
	testutil.AssertJSON(t, w, &resp)
	if resp["ballot_count"] != 3 {
		t.Errorf("Expected 3 ballots, got %d", resp["ballot_count"])
	}
}

func TestGetPreview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg)

	preview := func(slug string) models.PollPreviewResponse {
		t.Helper()
		req := testutil.MakeRequest("GET", "/polls/"+slug+"/preview", nil, nil)
		req.SetPathValue("slug", slug)
		w := httptest.NewRecorder()
		handler.GetPreview(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.PollPreviewResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	openID, _, openSlug := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Runoff)
	testutil.AddTestOption(t, db, openID, "A")
	testutil.AddTestOption(t, db, openID, "B")

	resp := preview(openSlug)
	if resp.VoteType != "Ranked-choice poll" || resp.OptionCount != 2 || resp.BallotCount != 0 {
		t.Errorf("Unexpected preview %+v", resp)
	}
	if resp.ClosedAgo != "" {
		t.Errorf("Open poll should not report closed_ago, got %q", resp.ClosedAgo)
	}

	_, _, closedSlug := testutil.CreateTestPoll(t, db, cfg, "closed")
	if resp := preview(closedSlug); resp.ClosedAgo == "" || resp.Status != models.StatusClosed {
		t.Errorf("Expected closed preview with closed_ago, got %+v", resp)
	}
}

func TestListPolls(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	handler := NewResultsHandler(db, cfg)

	testutil.CreateTestPoll(t, db, cfg, "draft")
	openPlurality, _, _ := testutil.CreateTestPoll(t, db, cfg, "open")
	closedRunoff, _, _ := testutil.CreateTestPollWith(t, db, cfg, "closed", testutil.Runoff)
	lapsedApproval, _, _ := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Approval)
	openRunoff, _, _ := testutil.CreateTestPollWith(t, db, cfg, "open", testutil.Runoff)

	deadlines := map[string]time.Time{
		lapsedApproval: time.Now().Add(-time.Hour),
		openRunoff:     time.Now().Add(time.Hour),
	}
	for id, at := range deadlines {
		if _, err := db.Exec(`UPDATE poll SET closes_at = $1 WHERE id = $2`, at, id); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"every published poll", "", []string{openPlurality, closedRunoff, lapsedApproval, openRunoff}},
		{"open", "?status=open", []string{openPlurality, openRunoff}},
		{"closed or past deadline", "?status=closed", []string{closedRunoff, lapsedApproval}},
		{"by type", "?type=instant-runoff", []string{closedRunoff, openRunoff}},
		{"by type and status", "?type=instant-runoff&status=open", []string{openRunoff}},
		{"no match", "?type=majority", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/polls"+tt.query, nil, nil)
			w := httptest.NewRecorder()
			handler.ListPolls(w, req)
			testutil.AssertStatus(t, w, http.StatusOK)

			var resp models.PollListResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Count != len(tt.want) || len(resp.Polls) != len(tt.want) {
				t.Fatalf("Expected %d polls, got %d (%+v)", len(tt.want), len(resp.Polls), resp.Polls)
			}
			got := make(map[string]bool)
			for _, p := range resp.Polls {
				if p.Status == models.StatusDraft {
					t.Errorf("Draft poll %s listed", p.ID)
				}
				got[p.ID] = true
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("Expected poll %s in listing", id)
				}
			}
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ListPolls(w, testutil.MakeRequest("GET", "/polls?type=borda", nil, nil))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ListPolls(w, testutil.MakeRequest("GET", "/polls?status=draft", nil, nil))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}
