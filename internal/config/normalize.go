package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeDefaults()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.URL = strings.TrimSpace(c.Backend.URL)
	if value, ok := os.LookupEnv(EnvBackendURL); ok {
		c.Backend.URL = strings.TrimSpace(value)
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Backend.HistoryTimeoutSeconds <= 0 {
		c.Backend.HistoryTimeoutSeconds = defaultHistoryTimeoutSeconds
	}
	c.Backend.UserAgent = strings.TrimSpace(c.Backend.UserAgent)
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeDefaults() {
	c.Defaults.Format = strings.ToLower(strings.TrimSpace(c.Defaults.Format))
	if c.Defaults.Format == "" {
		c.Defaults.Format = defaultFormat
	}
	c.Defaults.Quality = strings.TrimSpace(c.Defaults.Quality)
	if c.Defaults.Quality == "" {
		c.Defaults.Quality = defaultQuality
	}
	langs := make([]string, 0, len(c.Defaults.SubtitleLangs))
	for _, lang := range c.Defaults.SubtitleLangs {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	c.Defaults.SubtitleLangs = langs
	c.Defaults.FilenameTemplate = strings.TrimSpace(c.Defaults.FilenameTemplate)
}

func (c *Config) normalizeHistory() error {
	if c.History.Limit < 0 {
		c.History.Limit = 0
	}
	if !c.History.SnapshotEnabled {
		return nil
	}
	if strings.TrimSpace(c.History.SnapshotPath) == "" {
		c.History.SnapshotPath = filepath.Join(c.Paths.StateDir, defaultSnapshotName)
	}
	var err error
	if c.History.SnapshotPath, err = expandPath(c.History.SnapshotPath); err != nil {
		return fmt.Errorf("history.snapshot_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
