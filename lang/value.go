package lang

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// RequiredSentinel marks a parameter whose value must come from an override.
// Compilation fails while any parameter still holds it.
const RequiredSentinel = "{{REQUIRED}}"

// DType names the declared type of a parameter value.
type DType string

// Parameter types accepted by the dtype argument of a parameter marker.
const (
	DTypeInt   DType = "int"
	DTypeStr   DType = "str"
	DTypeFloat DType = "float"
	DTypeBool  DType = "bool"
	DTypeList  DType = "list"
	DTypeTuple DType = "tuple"
	DTypeDict  DType = "dict"
	DTypeSet   DType = "set"
)

var dtypes = map[DType]bool{
	DTypeInt:   true,
	DTypeStr:   true,
	DTypeFloat: true,
	DTypeBool:  true,
	DTypeList:  true,
	DTypeTuple: true,
	DTypeDict:  true,
	DTypeSet:   true,
}

// ParseDType validates s as a dtype name. The error wraps [ErrDType].
func ParseDType(s string) (DType, error) {
	d := DType(s)
	if !dtypes[d] {
		return "", ErrDType.With(slog.String("dtype", s))
	}

	return d, nil
}

// Container values as scanned from source or produced by overrides.
// Dict preserves declaration order, which the emitted literal reproduces.
type (
	List  []any
	Tuple []any
	Set   []any

	Dict []DictEntry

	DictEntry struct {
		Key any
		Val any
	}
)

// InferDType returns the dtype matching the dynamic type of v.
func InferDType(v any) (DType, bool) {
	switch v.(type) {
	case int64, int:
		return DTypeInt, true
	case string:
		return DTypeStr, true
	case float64:
		return DTypeFloat, true
	case bool:
		return DTypeBool, true
	case List:
		return DTypeList, true
	case Tuple:
		return DTypeTuple, true
	case Dict:
		return DTypeDict, true
	case Set:
		return DTypeSet, true
	}

	return "", false
}

// Coerce converts v, typically decoded from YAML or a command-line override,
// into the canonical Go representation for dtype. The error wraps
// [ErrValueType].
func Coerce(dtype DType, v any) (any, error) {
	if s, ok := v.(string); ok && s == RequiredSentinel {
		return s, nil
	}

	switch dtype {
	case DTypeInt:
		return coerceInt(v)
	case DTypeStr:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case DTypeFloat:
		return coerceFloat(v)
	case DTypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case DTypeList:
		if items, ok := coerceItems(v); ok {
			return List(items), nil
		}
	case DTypeTuple:
		if items, ok := coerceItems(v); ok {
			return Tuple(items), nil
		}
	case DTypeSet:
		if items, ok := coerceItems(v); ok {
			return Set(items), nil
		}
	case DTypeDict:
		if d, ok := coerceDict(v); ok {
			return d, nil
		}
	}

	return nil, ErrValueType.With(
		slog.String("dtype", string(dtype)),
		slog.String("value", fmt.Sprintf("%v", v)),
	)
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, ErrValueType.With(slog.Uint64("value", n))
		}

		return int64(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int64(n), nil
		}
	}

	return nil, ErrValueType.With(slog.String("value", fmt.Sprintf("%v", v)))
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}

	return nil, ErrValueType.With(slog.String("value", fmt.Sprintf("%v", v)))
}

func coerceItems(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return normalizeItems(items), true
	case List:
		return normalizeItems(items), true
	case Tuple:
		return normalizeItems(items), true
	case Set:
		return normalizeItems(items), true
	}

	return nil, false
}

func normalizeItems(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = normalizeScalar(item)
	}

	return out
}

func coerceDict(v any) (Dict, bool) {
	switch d := v.(type) {
	case Dict:
		return d, true
	case map[string]any:
		out := make(Dict, 0, len(d))
		for k, val := range d {
			out = append(out, DictEntry{Key: k, Val: normalizeScalar(val)})
		}

		return out, true
	}

	return nil, false
}

// normalizeScalar maps decoder-specific numeric types to the canonical ones.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
	case []any:
		return List(normalizeItems(n))
	case map[string]any:
		d, _ := coerceDict(n)

		return d
	}

	return v
}

// RenderLiteral emits v as Python source text appropriate for dtype.
func RenderLiteral(dtype DType, v any) string {
	switch dtype {
	case DTypeFloat:
		return renderFloat(v)
	case DTypeTuple:
		if items, ok := coerceItems(v); ok {
			return renderTuple(items)
		}
	case DTypeSet:
		if items, ok := coerceItems(v); ok {
			return renderSet(items)
		}
	}

	return renderValue(v)
}

// renderValue emits any scanned or coerced value as Python source.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}

		return "False"
	case string:
		return renderString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return renderFloat(val)
	case List:
		return "[" + renderItems(val) + "]"
	case Tuple:
		return renderTuple(val)
	case Set:
		return renderSet(val)
	case Dict:
		return renderDict(val)
	}

	return fmt.Sprintf("%v", v)
}

func renderString(s string) string {
	var buf strings.Builder

	buf.WriteByte('\'')

	for _, r := range s {
		switch r {
		case '\'':
			buf.WriteString(`\'`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteRune(r)
		}
	}

	buf.WriteByte('\'')

	return buf.String()
}

// renderFloat always includes a decimal point or exponent so the emitted
// literal stays a Python float.
func renderFloat(v any) string {
	f, ok := v.(float64)
	if !ok {
		if n, err := coerceFloat(v); err == nil {
			f = n.(float64)
		} else {
			return renderValue(v)
		}
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "inf") &&
		!strings.Contains(s, "NaN") {
		s += ".0"
	}

	return s
}

func renderItems(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = renderValue(item)
	}

	return strings.Join(parts, ", ")
}

func renderTuple(items []any) string {
	// A one-element tuple needs its trailing comma.
	if len(items) == 1 {
		return "(" + renderValue(items[0]) + ",)"
	}

	return "(" + renderItems(items) + ")"
}

func renderSet(items []any) string {
	// Empty braces would emit a dict.
	if len(items) == 0 {
		return "set()"
	}

	return "{" + renderItems(items) + "}"
}

func renderDict(d Dict) string {
	parts := make([]string, len(d))
	for i, e := range d {
		parts[i] = renderValue(e.Key) + ": " + renderValue(e.Val)
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
