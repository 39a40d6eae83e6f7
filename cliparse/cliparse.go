package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultPort          = 3318
	DefaultDatabaseType  = "sqlite"
	DefaultPublicBaseURL = "http://localhost:3318"
	DefaultCacheSize     = 256
)

type Config struct {
	Port                int
	DatabaseURL         string
	DatabaseType        string
	AdminKeySalt        string
	PollSlugSalt        string
	PublicBaseURL       string
	ResolutionCacheSize int
}

// ShareURL is the public link for a published poll.
func (c Config) ShareURL(slug string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/polls/" + slug
}

// ParseFlags reads flags, then fills anything unset from the environment.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("govpoll", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.PublicBaseURL, "base-url", "", "Public base URL for share links")
	fs.IntVar(&cfg.ResolutionCacheSize, "cache-size", 0, "Resolution cache entries")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	fs.StringVar(&cfg.PollSlugSalt, "slug-salt", "", "Poll slug salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := envInt(&cfg.Port, "PORT", DefaultPort); err != nil {
		return Config{}, err
	}
	if err := envInt(&cfg.ResolutionCacheSize, "RESOLUTION_CACHE_SIZE", DefaultCacheSize); err != nil {
		return Config{}, err
	}
	envString(&cfg.DatabaseURL, "DATABASE_URL", "")
	envString(&cfg.DatabaseType, "DATABASE_TYPE", DefaultDatabaseType)
	envString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL", DefaultPublicBaseURL)
	envString(&cfg.AdminKeySalt, "ADMIN_KEY_SALT", "")
	envString(&cfg.PollSlugSalt, "POLL_SLUG_SALT", "")

	switch {
	case cfg.DatabaseURL == "":
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	case cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres":
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	case cfg.AdminKeySalt == "":
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	case cfg.PollSlugSalt == "":
		return Config{}, errors.New("POLL_SLUG_SALT required")
	case cfg.ResolutionCacheSize < 0:
		return Config{}, errors.New("cache size must not be negative")
	}

	return cfg, nil
}

func envString(dst *string, key, def string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
		return
	}
	*dst = def
}

func envInt(dst *int, key string, def int) error {
	if *dst != 0 {
		return nil
	}
	v := os.Getenv(key)
	if v == "" {
		*dst = def
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s env variable", key)
	}
	*dst = n
	return nil
}
