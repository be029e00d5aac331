// Package config loads, normalizes, and validates lightbox configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and keeps the playable-extension set in a
// canonical lowercase form. The Config type centralizes every knob the CLI
// needs, so cache directories, thumbnail parameters, and quota limits are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
