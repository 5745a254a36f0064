package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bmsrender/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvDatabasePath, "/tmp/jobs.db")
	t.Setenv(config.EnvRendererURL, "http://127.0.0.1:8080")
	t.Setenv(config.EnvBucket, "/tmp/bucket")
	t.Setenv(config.EnvListen, "127.0.0.1:8080")
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	cfg, err = config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabasePath != "/tmp/jobs.db" || cfg.Listen != "127.0.0.1:8080" {
		t.Fatalf("environment settings not applied: %+v", cfg)
	}
	if cfg.Tools.Downloader != "wget" || cfg.Tools.Encoder != "lame" {
		t.Fatalf("tool defaults not applied: %+v", cfg.Tools)
	}
	if cfg.Timeouts.Render != 300 || cfg.Timeouts.Dispatch != 900 {
		t.Fatalf("timeout defaults not applied: %+v", cfg.Timeouts)
	}
	if cfg.MaxInFlight != 128 {
		t.Fatalf("expected default dispatch cap 128, got %d", cfg.MaxInFlight)
	}
}

func TestLoadFailsFastOnMissingEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(config.EnvRendererURL, "")
	t.Setenv(config.EnvBucket, "  ")

	_, err := config.Load("")
	if err == nil {
		t.Fatal("expected error for missing environment settings")
	}
	msg := err.Error()
	if !strings.Contains(msg, config.EnvRendererURL) || !strings.Contains(msg, config.EnvBucket) {
		t.Fatalf("expected every missing variable to be named, got %q", msg)
	}
	if strings.Contains(msg, config.EnvDatabasePath) {
		t.Fatalf("present variable must not be reported missing: %q", msg)
	}
}

func TestLoadAppliesTOMLOverrides(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	payload := `
max_in_flight = 4

[tools]
downloader = "curl"

[timeouts]
render = 600

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxInFlight != 4 {
		t.Fatalf("expected override, got %d", cfg.MaxInFlight)
	}
	if cfg.Tools.Downloader != "curl" {
		t.Fatalf("expected tool override, got %s", cfg.Tools.Downloader)
	}
	if cfg.Tools.Encoder != "lame" {
		t.Fatalf("unset tools must keep defaults, got %s", cfg.Tools.Encoder)
	}
	if cfg.Timeouts.Render != 600 || cfg.Timeouts.Download != 120 {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected logging override, got %s", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero cap", func(c *config.Config) { c.MaxInFlight = 0 }},
		{"empty work root", func(c *config.Config) { c.WorkRoot = " " }},
		{"unknown provider", func(c *config.Config) { c.Storage.Provider = "s3" }},
		{"empty tool", func(c *config.Config) { c.Tools.Renderer = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(config.Sample()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	setRequiredEnv(t)
	if _, err := config.Load(path); err != nil {
		t.Fatalf("sample config must load cleanly: %v", err)
	}
}
