// Package config loads, normalizes, and validates reeler configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), overlays a .env file, reads TOML files, and honours environment
// fallbacks such as REELER_COOKIE_FILE. The Config type centralizes every knob
// the pipeline and CLI need so downloader and encoder settings are discovered
// in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
