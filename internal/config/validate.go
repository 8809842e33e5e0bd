package config

import (
	"errors"
	"fmt"
	"net/url"

	"fluxmedia/internal/request"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateDefaults(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	// An empty URL means same-origin: links stay relative and calls fail as
	// transport errors until a host is configured.
	if c.Backend.URL != "" {
		parsed, err := url.Parse(c.Backend.URL)
		if err != nil {
			return fmt.Errorf("backend.url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("backend.url must use http or https, got %q", c.Backend.URL)
		}
		if parsed.Host == "" {
			return fmt.Errorf("backend.url must include a host, got %q", c.Backend.URL)
		}
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return errors.New("backend.timeout_seconds must be positive")
	}
	if c.Backend.HistoryTimeoutSeconds <= 0 {
		return errors.New("backend.history_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDefaults() error {
	if _, ok := request.ParseFormat(c.Defaults.Format); !ok {
		return fmt.Errorf("defaults.format must be one of %s, got %q", request.FormatList(), c.Defaults.Format)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
