// Package logger provides a slog factory plus typed attribute helpers used
// across the delivery engine. Adapters receive a *slog.Logger via their
// options and fall back to slog.Default() when none is supplied.
package logger
