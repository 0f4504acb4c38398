package log

import (
	"context"
	"log/slog"
)

// Logger records structured events.
//
// The zero value discards every record, so a Logger may be embedded or passed
// by value without initialization.
type Logger struct {
	slog *slog.Logger
	cfg  config
}

// New constructs a Logger from the given options.
func New(opts ...Option) Logger {
	var cfg config
	applyDefaults(&cfg)
	applyOptions(&cfg, opts...)

	hopt := &slog.HandlerOptions{
		Level:     cfg.level.Slog(),
		AddSource: cfg.source,
	}

	var h slog.Handler
	switch {
	case cfg.pretty:
		h = newPrettyHandler(cfg.writer, hopt, cfg.format == FormatJSON)
	case cfg.format == FormatJSON:
		h = slog.NewJSONHandler(cfg.writer, hopt)
	default:
		h = slog.NewTextHandler(cfg.writer, hopt)
	}

	return Logger{slog: slog.New(h), cfg: cfg}
}

// Enabled reports whether records at the given level would be recorded.
func (l Logger) Enabled(level Level) bool {
	if l.slog == nil {
		return false
	}
	return l.slog.Enabled(context.Background(), level.Slog())
}

// With returns a Logger that includes the given attributes in every record.
func (l Logger) With(args ...any) Logger {
	if l.slog == nil {
		return l
	}
	return Logger{slog: l.slog.With(args...), cfg: l.cfg}
}

// WithGroup returns a Logger that nests attributes under name.
func (l Logger) WithGroup(name string) Logger {
	if l.slog == nil {
		return l
	}
	return Logger{slog: l.slog.WithGroup(name), cfg: l.cfg}
}

func (l Logger) log(level Level, msg string, args ...any) {
	if l.slog == nil {
		return
	}
	l.slog.Log(context.Background(), level.Slog(), msg, args...)
}

// Trace records msg at [LevelTrace].
func (l Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }

// Debug records msg at [LevelDebug].
func (l Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info records msg at [LevelInfo].
func (l Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn records msg at [LevelWarn].
func (l Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error records msg at [LevelError].
func (l Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }
