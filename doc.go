// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the govpoll API server.

govpoll runs token-weighted polls. Each address votes with the weight the
poll creator assigned to it, and closing a poll resolves the ballots under
the declared victory conditions: plurality, majority, approval or
instant-runoff.

# Starting the Server

Configuration comes from flags, the environment, or a .env file:

	DATABASE_URL=file:govpoll.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): Connection string or sqlite file
  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC
  - POLL_SLUG_SALT (-slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - PUBLIC_BASE_URL (-base-url): Prefix for share URLs
  - RESOLUTION_CACHE_SIZE (-cache-size): Cached resolutions (default: 256)

# Architecture

  - victory: Ballot validation and weighted resolution
  - cache: LRU of resolutions keyed by a blake3 hash of their inputs
  - metrics: Prometheus collectors served on /metrics
  - handlers: HTTP request handlers (polls, voting, results, addresses)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Keys, tokens and address normalization
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
