// cliparse/cliparse_test.go
package cliparse

import (
	"testing"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("ADMIN_KEY_SALT", "test-salt")
	t.Setenv("POLL_SLUG_SALT", "test-slug")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("PUBLIC_BASE_URL", "https://vote.example.org")
	t.Setenv("RESOLUTION_CACHE_SIZE", "32")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.DatabaseType)
	}
	if cfg.PublicBaseURL != "https://vote.example.org" {
		t.Errorf("unexpected base URL %s", cfg.PublicBaseURL)
	}
	if cfg.ResolutionCacheSize != 32 {
		t.Errorf("expected cache size 32, got %d", cfg.ResolutionCacheSize)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("RESOLUTION_CACHE_SIZE", "")

	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
	if cfg.DatabaseType != DefaultDatabaseType {
		t.Errorf("expected sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.ResolutionCacheSize != DefaultCacheSize {
		t.Errorf("expected default cache size, got %d", cfg.ResolutionCacheSize)
	}
	if cfg.PublicBaseURL != DefaultPublicBaseURL {
		t.Errorf("expected default base URL, got %s", cfg.PublicBaseURL)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:cli.db", "-admin-salt", "s1", "-slug-salt", "s2", "-cache-size", "8"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "file:cli.db" || cfg.AdminKeySalt != "s1" || cfg.PollSlugSalt != "s2" {
		t.Errorf("CLI values not applied: %+v", cfg)
	}
	if cfg.ResolutionCacheSize != 8 {
		t.Errorf("expected cache size 8, got %d", cfg.ResolutionCacheSize)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, nil},
		{"missing admin salt", map[string]string{"ADMIN_KEY_SALT": ""}, nil},
		{"missing slug salt", map[string]string{"POLL_SLUG_SALT": ""}, nil},
		{"bad port", map[string]string{"PORT": "abc"}, nil},
		{"bad cache size", map[string]string{"RESOLUTION_CACHE_SIZE": "lots"}, nil},
		{"negative cache size", nil, []string{"-cache-size", "-1"}},
		{"unknown db type", map[string]string{"DATABASE_TYPE": "mysql"}, nil},
		{"unknown flag", nil, []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := ParseFlags(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestShareURL(t *testing.T) {
	cfg := Config{PublicBaseURL: "https://vote.example.org/"}
	if got := cfg.ShareURL("abc"); got != "https://vote.example.org/polls/abc" {
		t.Errorf("ShareURL() = %s", got)
	}
}
