// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"bmsrender/internal/config"
)

// NewConfig returns a configuration rooted in a per-test temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(base, "jobs.db")
	cfg.RendererURL = "http://127.0.0.1:0"
	cfg.Bucket = filepath.Join(base, "bucket")
	cfg.Listen = "127.0.0.1:0"
	cfg.WorkRoot = filepath.Join(base, "work")
	cfg.Logging.OutputPaths = []string{"stderr"}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return cfg
}
