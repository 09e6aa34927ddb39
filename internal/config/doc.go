// Package config loads, normalizes, and validates Splintarr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SPLINTARR_SECRET_KEY and SPLINTARR_SECRET_KEY_FILE. The Config type
// centralizes every knob the CLI and reconciliation engine need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
