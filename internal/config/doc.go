// Package config loads, normalizes, and validates flux configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FLUX_BACKEND_URL environment
// override. The Config type centralizes every knob the CLI needs so the
// backend location, download defaults, and local state directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
