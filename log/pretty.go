package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// ANSI escape sequences for pretty output.
const (
	ansiReset   = "\033[0m"
	ansiGray    = "\033[90m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// prettyHandler renders colorized records for terminals in either a
// key=value line format or an indented JSON-like block format.
type prettyHandler struct {
	opts  slog.HandlerOptions
	mu    *sync.Mutex
	w     io.Writer
	json  bool
	attrs []slog.Attr
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, json bool) *prettyHandler {
	return &prettyHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		w:    w,
		json: json,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(string) slog.Handler {
	clone := *h
	return &clone
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	if h.json {
		buf.WriteString("{\n")
	}

	first := true
	if !r.Time.IsZero() {
		h.field(buf, slog.TimeKey, slog.TimeValue(r.Time), &first)
	}
	h.field(buf, slog.LevelKey, slog.AnyValue(r.Level), &first)
	if h.opts.AddSource && r.PC != 0 {
		// slog.Record.Source requires Go 1.25; derive the source frame
		// from r.PC the same way the stdlib does.
		fs := runtime.CallersFrames([]uintptr{r.PC})
		if f, _ := fs.Next(); f.File != "" || f.Line != 0 {
			loc := fmt.Sprintf("%s:%d", f.File, f.Line)
			h.field(buf, slog.SourceKey, slog.StringValue(loc), &first)
		}
	}
	h.field(buf, slog.MessageKey, slog.StringValue(r.Message), &first)
	for _, a := range h.attrs {
		h.field(buf, a.Key, a.Value, &first)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.field(buf, a.Key, a.Value, &first)
		return true
	})

	if h.json {
		buf.WriteString("\n}")
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) field(buf *bytes.Buffer, key string, v slog.Value, first *bool) {
	switch {
	case h.json:
		if !*first {
			buf.WriteString(",\n")
		}
		buf.WriteString("  ")
		buf.WriteString(ansiGray)
		buf.WriteString(key)
		buf.WriteString(ansiReset)
		buf.WriteString(": ")
	default:
		if !*first {
			buf.WriteByte(' ')
		}
		buf.WriteString(ansiGray)
		buf.WriteString(key)
		buf.WriteString(ansiReset)
		buf.WriteByte('=')
	}
	*first = false
	h.value(buf, v)
}

func (h *prettyHandler) value(buf *bytes.Buffer, v slog.Value) {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		h.colored(buf, ansiCyan, v.String())

	case slog.KindInt64:
		h.colored(buf, ansiYellow, strconv.FormatInt(v.Int64(), 10))

	case slog.KindUint64:
		h.colored(buf, ansiYellow, strconv.FormatUint(v.Uint64(), 10))

	case slog.KindFloat64:
		h.colored(buf, ansiYellow, strconv.FormatFloat(v.Float64(), 'g', -1, 64))

	case slog.KindBool:
		if v.Bool() {
			h.colored(buf, ansiGreen, "true")
		} else {
			h.colored(buf, ansiRed, "false")
		}

	case slog.KindDuration:
		h.colored(buf, ansiMagenta, v.Duration().String())

	case slog.KindTime:
		h.colored(buf, ansiBlue, v.Time().Format(time.RFC3339))

	case slog.KindAny:
		if level, ok := v.Any().(slog.Level); ok {
			h.colored(buf, levelColor(level), Level(level).String())
			return
		}
		h.colored(buf, ansiCyan, v.String())

	default:
		h.colored(buf, ansiCyan, v.String())
	}
}

func (h *prettyHandler) colored(buf *bytes.Buffer, color, s string) {
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(ansiReset)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiBlue
	}
}
