package preflight

import (
	"context"
	"strings"

	"fluxmedia/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. The snapshot check only
// runs when the snapshot is enabled.
func RunAll(ctx context.Context, cfg *config.Config, prober HistoryProber) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBackend(ctx, strings.TrimSpace(cfg.Backend.URL), prober),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckSessionLock(cfg.LockPath()),
	}
	if cfg.History.SnapshotEnabled {
		results = append(results, CheckSnapshot(ctx, cfg.History.SnapshotPath))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
