// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the govpoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	reg := prometheus.NewRegistry()
	mux, err := router.NewRouter(db, cfg, reg)

It also builds the shared resolution cache and the Prometheus collectors.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Poll management (admin, requires X-Admin-Key):

	POST /polls              - Create poll
	GET  /polls/{id}/admin   - Get poll details
	POST /polls/{id}/options - Add option
	PUT  /polls/{id}/weights - Set voting weights
	POST /polls/{id}/publish - Open for voting
	GET  /polls/{id}/tally   - Resolve ballots cast so far
	POST /polls/{id}/close   - Resolve and seal results

Voting (public, uses share slug, ballots require X-Voter-Token):

	POST /polls/{slug}/claim-address - Claim voter identity
	POST /polls/{slug}/ballots       - Submit/replace ballot
	GET  /polls/{slug}/my-ballot     - Read back own ballot

Results (public):

	GET /polls                     - Published polls, ?type= and ?status=
	GET /polls/{slug}              - Poll info and options
	GET /polls/{slug}/results      - Final results (closed only)
	GET /polls/{slug}/ballot-count - Vote count
	GET /polls/{slug}/preview      - Compact preview data

Addresses:

	GET /address/{address}/stats - Vote history of an address
	GET /address/stats?address=  - Merged history of several addresses

Every API route goes through middleware.WithObserver, so it is logged and
counted in govpoll_http_requests_total.
*/
package router
