// Package logging configures structured slog output for docindex.
// Without --debug only warnings reach stderr; with --debug every event is
// also written as JSON to a rotating file under ~/.docindex/logs/.
package logging
