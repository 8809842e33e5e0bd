package testsupport

import (
	"testing"

	"fluxmedia/internal/config"
	"fluxmedia/internal/history"
)

// MustOpenSnapshot opens the history snapshot store named by cfg and
// registers cleanup. The config must have the snapshot enabled.
func MustOpenSnapshot(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	if !cfg.History.SnapshotEnabled {
		t.Fatal("MustOpenSnapshot: history snapshot is disabled in config")
	}
	store, err := history.OpenStore(cfg.History.SnapshotPath)
	if err != nil {
		t.Fatalf("history.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
