package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level controls the minimum severity a Logger records.
//
// It extends [slog.Level] with [LevelTrace] below [slog.LevelDebug] for
// high-volume diagnostics like per-token scanner output.
type Level slog.Level

// Severity levels ordered from most to least verbose.
const (
	LevelTrace Level = Level(slog.LevelDebug - 4)
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// ParseLevel returns the Level named by s, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unrecognized log level: %q", s)
}

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return slog.Level(l).String()
}

// Slog converts l to the [slog.Level] used by handlers.
func (l Level) Slog() slog.Level { return slog.Level(l) }

// Format selects the output encoding of a Logger.
type Format int

// Supported output encodings.
const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat returns the Format named by s, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unrecognized log format: %q", s)
}

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

type config struct {
	level  Level
	format Format
	writer io.Writer
	pretty bool
	source bool
}

// Option configures a Logger constructed with [New] or [Config].
type Option func(*config)

func applyDefaults(c *config) {
	c.level = LevelInfo
	c.format = FormatText
	c.writer = os.Stderr
}

func applyOptions(c *config, opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
}

// WithLevel sets the minimum severity recorded.
func WithLevel(l Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat sets the output encoding.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithWriter sets the destination for log records.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithPretty enables colorized, human-oriented output.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithSource annotates records with the file and line of the call site.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
