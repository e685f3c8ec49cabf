// Package config loads, normalizes, and validates convoy configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CONVOY_NTFY_TOPIC. The Config type centralizes every knob the orchestrator
// and CLI need: output and log directories, the concurrency bound, engine
// backend selection, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
