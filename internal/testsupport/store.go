package testsupport

import (
	"testing"

	"bmsrender/internal/config"
	"bmsrender/internal/jobs"
)

// MustOpenStore opens a job store for the test configuration and closes it on
// cleanup.
func MustOpenStore(t *testing.T, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
