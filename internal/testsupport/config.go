package testsupport

import (
	"path/filepath"
	"testing"

	"fluxmedia/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The backend URL is left empty unless WithBackendURL is supplied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Backend.URL = ""
	cfgVal.Backend.TimeoutSeconds = 5
	cfgVal.Backend.HistoryTimeoutSeconds = 2
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackendURL points the test config at a fake backend.
func WithBackendURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.URL = url
	}
}

// WithSnapshot enables the SQLite history snapshot inside the temp state dir.
func WithSnapshot() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.SnapshotEnabled = true
		b.cfg.History.SnapshotPath = filepath.Join(b.cfg.Paths.StateDir, "history.db")
	}
}

// WithDefaultFormat overrides defaults.format.
func WithDefaultFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Defaults.Format = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
