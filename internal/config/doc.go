// Package config loads, normalizes, and validates ddexer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// per-source secrets such as DDEXER_<SOURCE>_S3_SECRET_KEY. The Config type
// centralizes the delivery sources, their object-store and SDK credentials,
// and the timing of the ingest and publish loops.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
