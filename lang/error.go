package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrReadInput         = NewError("failed to read input")
	ErrScan              = NewError("scan failed")
	ErrNonLiteralValue   = NewError("marker argument is not a literal")
	ErrDType             = NewError("invalid dtype")
	ErrValueType         = NewError("value does not match dtype")
	ErrScopeCollision    = NewError("scope path already occupied")
	ErrModuleNotFound    = NewError("module not found")
	ErrModuleAmbiguous   = NewError("module resolves to multiple files")
	ErrImportCycle       = NewError("include cycle detected")
	ErrDeriveConflict    = NewError("deriving file declares markers beyond its derivation")
	ErrReplaceTarget     = NewError("replacement target not found")
	ErrMissingRequired   = NewError("required parameter has no value")
	ErrOverrideNotFound  = NewError("override path not found")
	ErrOverrideMalformed = NewError("override is malformed")
	ErrVersionMismatch   = NewError("version parameter mismatch")
)

// Position locates a marker or token within a source file.
type Position struct {
	File   string // Path as opened, empty when scanning from memory
	Offset int    // Byte offset from start of file
	Line   int    // 1-based line number
	Column int    // 1-based column number
}

// String returns the position as "file:line:col".
func (p Position) String() string {
	file := p.File
	if file == "" {
		file = "<input>"
	}

	return file + ":" + strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// LogValue implements slog.LogValuer.
func (p Position) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("file", p.File),
		slog.Int("line", p.Line),
		slog.Int("col", p.Column),
	)
}

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	pos   *Position   // Source position, when known
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		msg := e.msg
		if e.pos != nil {
			msg += " at " + e.pos.String()
		}

		part = append(part, msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is a sentinel sharing this error's message.
// It lets errors.Is match wrapped copies produced by [Error.With] and
// [Error.Wrap] against the package sentinels.
func (e *Error) Is(target error) bool {
	te := &Error{}
	if !errors.As(target, &te) {
		return false
	}

	return e.msg == te.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		pos:   e.pos,
		attrs: e.attrs, // Share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		pos:   e.pos,
		attrs: newAttrs,
	}
}

// WithPosition attaches the source position where the error arose.
func (e *Error) WithPosition(pos Position) *Error {
	return &Error{
		msg:   e.msg,
		err:   e.err,
		pos:   &pos,
		attrs: append(e.attrs[:len(e.attrs):len(e.attrs)], slog.Any("pos", pos)),
	}
}

// ScanError decorates a scan failure with the offending source line.
type ScanError struct {
	Err    error
	Pos    Position
	Source string
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Err.Error())
	buf.WriteString(" at ")
	buf.WriteString(e.Pos.String())

	lines := strings.Split(e.Source, "\n")
	if e.Pos.Line > 0 && e.Pos.Line <= len(lines) {
		line := lines[e.Pos.Line-1]
		num := strconv.Itoa(e.Pos.Line)

		buf.WriteString("\n  ")
		buf.WriteString(num)
		buf.WriteString(" | ")
		buf.WriteString(line)
		buf.WriteByte('\n')

		// Marker under the offending column, past "  N | ".
		pad := len(num) + 5
		if e.Pos.Column > 0 {
			pad += e.Pos.Column - 1
		}

		buf.WriteString(strings.Repeat(" ", pad))
		buf.WriteByte('^')
	}

	return buf.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ScanError) Unwrap() error { return e.Err }
