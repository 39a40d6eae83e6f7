// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/govpoll/cache"
	"github.com/danielhkuo/govpoll/cliparse"
	"github.com/danielhkuo/govpoll/handlers"
	"github.com/danielhkuo/govpoll/metrics"
	"github.com/danielhkuo/govpoll/middleware"
)

// NewRouter wires every handler. Collectors are registered with reg and
// served from it on /metrics.
func NewRouter(db *sql.DB, cfg cliparse.Config, reg *prometheus.Registry) (*http.ServeMux, error) {
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	resolutions, err := cache.New(cfg.ResolutionCacheSize)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithObserver(m, h)
	}

	// Initialize handlers
	tallier := handlers.NewTallier(resolutions, m)
	pollHandler := handlers.NewPollHandler(db, cfg, tallier)
	votingHandler := handlers.NewVotingHandler(db, cfg)
	resultsHandler := handlers.NewResultsHandler(db, cfg)
	addressHandler := handlers.NewAddressHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler(reg))

	// Poll management (admin operations)
	mux.HandleFunc("POST /polls", wrap(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/{id}/admin", wrap(pollHandler.GetPollAdmin))
	mux.HandleFunc("POST /polls/{id}/options", wrap(pollHandler.AddOption))
	mux.HandleFunc("PUT /polls/{id}/weights", wrap(pollHandler.SetWeights))
	mux.HandleFunc("POST /polls/{id}/publish", wrap(pollHandler.PublishPoll))
	mux.HandleFunc("GET /polls/{id}/tally", wrap(pollHandler.GetLiveTally))
	mux.HandleFunc("POST /polls/{id}/close", wrap(pollHandler.ClosePoll))

	// Voting operations (public)
	mux.HandleFunc("POST /polls/{slug}/claim-address", wrap(votingHandler.ClaimAddress))
	mux.HandleFunc("POST /polls/{slug}/ballots", wrap(votingHandler.SubmitBallot))
	mux.HandleFunc("GET /polls/{slug}/my-ballot", wrap(votingHandler.GetMyBallot))

	// Results retrieval (public, with sealed results)
	mux.HandleFunc("GET /polls", wrap(resultsHandler.ListPolls))
	mux.HandleFunc("GET /polls/{slug}", wrap(resultsHandler.GetPoll))
	mux.HandleFunc("GET /polls/{slug}/results", wrap(resultsHandler.GetResults))
	mux.HandleFunc("GET /polls/{slug}/ballot-count", wrap(resultsHandler.GetBallotCount))
	mux.HandleFunc("GET /polls/{slug}/preview", wrap(resultsHandler.GetPreview))

	// Address history
	mux.HandleFunc("GET /address/stats", wrap(addressHandler.GetStatsMulti))
	mux.HandleFunc("GET /address/{address}/stats", wrap(addressHandler.GetStats))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("govpoll API v1"))
	})

	return mux, nil
}
