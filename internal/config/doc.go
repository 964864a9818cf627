// Package config loads, normalizes, and validates majdl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MAJDL_OUTPUT_DIR. CLI flags are layered on top through the Set* helpers so
// every consumer sees sanitized absolute paths.
package config
