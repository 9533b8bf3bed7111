// Package logging assembles structured slog loggers and formatting helpers used
// across ddexer components.
//
// It owns the configurable console/JSON handlers and centralizes level and
// output plumbing. Console output lifts the component, source, and release key
// into a readable header so a single release can be followed through ingest
// and publish passes. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
