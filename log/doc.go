// Package log provides structured logging for pyparam built on [log/slog].
//
// A zero-valued [Logger] is valid and discards all output, which lets library
// code accept a Logger without nil checks. The package also maintains a
// default Logger used by the CLI, configured with functional options:
//
//	log.Config(
//	    log.WithLevel(log.LevelDebug),
//	    log.WithFormat(log.FormatText),
//	    log.WithPretty(true),
//	)
//
// Formats are "json" and "text", each with an optional colorized pretty
// variant for terminals.
package log
