// Package logging assembles the slog loggers used across the daemon and CLI.
//
// It owns the console and JSON handlers, per-component level overrides, and
// context helpers that tag lines with project IDs, jobs, pipeline steps and
// correlation IDs. NewNop provides a silent logger for tests and optional
// dependencies.
package logging
