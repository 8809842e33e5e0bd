package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/config"
	"fluxmedia/internal/history"
	"fluxmedia/internal/logging"
	"fluxmedia/internal/operation"
	"fluxmedia/internal/sessionlock"
)

// errAlreadyReported marks a failure whose message the command has already
// printed; main exits non-zero without printing it again.
var errAlreadyReported = errors.New("failure already reported")

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		opts := logging.ConfigOptions(cfg)
		if c.verbose != nil && *c.verbose {
			opts.OutputPaths = append(opts.OutputPaths, "stderr")
		}
		logger, err := logging.New(opts)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// session bundles what a single command invocation needs to talk to the
// backend. Close must be called once the command is done.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *backend.Client
	history *history.Sync
	store   *history.Store
}

func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	client := backend.NewFromConfig(cfg, logger)
	syncOpts := []history.Option{
		history.WithLogger(logger),
		history.WithTimeout(cfg.HistoryTimeout()),
	}

	s := &session{cfg: cfg, logger: logger, client: client}
	if cfg.History.SnapshotEnabled {
		store, err := history.OpenStore(cfg.History.SnapshotPath)
		if err != nil {
			logging.WarnWithContext(logger, "history snapshot unavailable", "history_snapshot_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history is not persisted between runs"),
			)
		} else {
			s.store = store
			syncOpts = append(syncOpts, history.WithSnapshot(store))
		}
	}
	s.history = history.NewSync(client, syncOpts...)
	return s, nil
}

// controller builds an operation controller whose successful downloads
// refresh the session's history cache.
func (s *session) controller(opts ...operation.Option) *operation.Controller {
	opts = append([]operation.Option{operation.WithLogger(s.logger)}, opts...)
	ctrl := operation.New(s.client, opts...)
	ctrl.OnTransition(history.RefreshAfterDownload(s.history))
	return ctrl
}

func (s *session) Close() {
	s.history.Wait()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close history snapshot", logging.Error(err))
		}
	}
}

func acquireLock(cfg *config.Config) (*sessionlock.Lock, error) {
	return sessionlock.TryAcquire(cfg.LockPath())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
