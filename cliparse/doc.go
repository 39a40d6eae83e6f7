// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Connection string or SQLite file (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - AdminKeySalt: Secret for admin key HMAC (required)
  - PollSlugSalt: Secret for share slug generation (required)
  - PublicBaseURL: Prefix for share links (default: http://localhost:3318)
  - ResolutionCacheSize: Entries kept in the resolution cache (default: 256)

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type
	-base-url     Public base URL
	-cache-size   Resolution cache size
	-admin-salt   Admin key salt
	-slug-salt    Poll slug salt

# Environment Variables

Flags fall back to environment variables:

	PORT                  → -p
	DATABASE_URL          → -d
	DATABASE_TYPE         → -t
	PUBLIC_BASE_URL       → -base-url
	RESOLUTION_CACHE_SIZE → -cache-size
	ADMIN_KEY_SALT        → -admin-salt
	POLL_SLUG_SALT        → -slug-salt

main loads a .env file (godotenv) before parsing, so values there act like
environment variables.

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - DATABASE_TYPE must be sqlite or postgres
  - ADMIN_KEY_SALT must be provided
  - POLL_SLUG_SALT must be provided
  - numeric values must parse

# Example

	// In main.go
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open(cfg.DatabaseType, cfg.DatabaseURL)
	// ...
	mux := router.NewRouter(db, cfg, reg)
*/
package cliparse
