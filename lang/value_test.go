package lang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dtype DType
		value any
		want  string
	}{
		{name: "int", dtype: DTypeInt, value: int64(42), want: "42"},
		{name: "negative int", dtype: DTypeInt, value: int64(-7), want: "-7"},
		{name: "str", dtype: DTypeStr, value: "hello", want: "'hello'"},
		{
			name:  "str with quote",
			dtype: DTypeStr,
			value: "it's",
			want:  `'it\'s'`,
		},
		{
			name:  "str with newline",
			dtype: DTypeStr,
			value: "a\nb",
			want:  `'a\nb'`,
		},
		{name: "bool true", dtype: DTypeBool, value: true, want: "True"},
		{name: "bool false", dtype: DTypeBool, value: false, want: "False"},
		{name: "float", dtype: DTypeFloat, value: 1.5, want: "1.5"},
		{
			name:  "whole float keeps point",
			dtype: DTypeFloat,
			value: float64(3),
			want:  "3.0",
		},
		{
			name:  "int value as float dtype",
			dtype: DTypeFloat,
			value: int64(2),
			want:  "2.0",
		},
		{
			name:  "list",
			dtype: DTypeList,
			value: List{int64(1), "a", true},
			want:  "[1, 'a', True]",
		},
		{name: "empty list", dtype: DTypeList, value: List{}, want: "[]"},
		{
			name:  "tuple",
			dtype: DTypeTuple,
			value: Tuple{int64(1), int64(2)},
			want:  "(1, 2)",
		},
		{
			name:  "single element tuple",
			dtype: DTypeTuple,
			value: Tuple{int64(1)},
			want:  "(1,)",
		},
		{name: "empty set", dtype: DTypeSet, value: Set{}, want: "set()"},
		{
			name:  "set",
			dtype: DTypeSet,
			value: Set{int64(1), int64(2)},
			want:  "{1, 2}",
		},
		{
			name:  "dict preserves order",
			dtype: DTypeDict,
			value: Dict{{Key: "z", Val: int64(1)}, {Key: "a", Val: int64(2)}},
			want:  "{'z': 1, 'a': 2}",
		},
		{name: "empty dict", dtype: DTypeDict, value: Dict{}, want: "{}"},
		{name: "none", dtype: DTypeStr, value: nil, want: "None"},
		{
			name:  "nested containers",
			dtype: DTypeList,
			value: List{Tuple{int64(1), int64(2)}, Dict{{Key: "k", Val: nil}}},
			want:  "[(1, 2), {'k': None}]",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RenderLiteral(tt.dtype, tt.value); got != tt.want {
				t.Errorf("RenderLiteral(%q, %v) = %q, want %q",
					tt.dtype, tt.value, got, tt.want)
			}
		})
	}
}

func TestInferDType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value any
		want  DType
		ok    bool
	}{
		{int64(1), DTypeInt, true},
		{"s", DTypeStr, true},
		{1.0, DTypeFloat, true},
		{true, DTypeBool, true},
		{List{}, DTypeList, true},
		{Tuple{}, DTypeTuple, true},
		{Dict{}, DTypeDict, true},
		{Set{}, DTypeSet, true},
		{nil, DType(""), false},
	}

	for _, tt := range tests {
		got, ok := InferDType(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("InferDType(%v) = (%q, %v), want (%q, %v)",
				tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dtype   DType
		value   any
		want    any
		wantErr bool
	}{
		{name: "int from int64", dtype: DTypeInt, value: int64(5), want: int64(5)},
		{name: "int from uint64", dtype: DTypeInt, value: uint64(5), want: int64(5)},
		{name: "int from whole float", dtype: DTypeInt, value: 5.0, want: int64(5)},
		{name: "int from fraction fails", dtype: DTypeInt, value: 5.5, wantErr: true},
		{name: "int from string fails", dtype: DTypeInt, value: "5", wantErr: true},
		{name: "float from int", dtype: DTypeFloat, value: int64(2), want: 2.0},
		{name: "str", dtype: DTypeStr, value: "x", want: "x"},
		{name: "str from int fails", dtype: DTypeStr, value: int64(1), wantErr: true},
		{name: "bool", dtype: DTypeBool, value: true, want: true},
		{
			name:  "list from decoded slice",
			dtype: DTypeList,
			value: []any{1, "a"},
			want:  List{int64(1), "a"},
		},
		{
			name:  "tuple from decoded slice",
			dtype: DTypeTuple,
			value: []any{1},
			want:  Tuple{int64(1)},
		},
		{
			name:  "set from decoded slice",
			dtype: DTypeSet,
			value: []any{1},
			want:  Set{int64(1)},
		},
		{
			name:  "dict from plain map",
			dtype: DTypeDict,
			value: map[string]any{"k": 1},
			want:  Dict{{Key: "k", Val: int64(1)}},
		},
		{
			name:  "required sentinel passes any dtype",
			dtype: DTypeInt,
			value: RequiredSentinel,
			want:  RequiredSentinel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Coerce(tt.dtype, tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrValueType) {
					t.Fatalf("error = %v, want ErrValueType", err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Coerce error: %v", err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("coerced value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDType(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{
		"int", "str", "float", "bool", "list", "tuple", "dict", "set",
	} {
		if _, err := ParseDType(valid); err != nil {
			t.Errorf("ParseDType(%q) error: %v", valid, err)
		}
	}

	if _, err := ParseDType("integer"); !errors.Is(err, ErrDType) {
		t.Errorf("ParseDType(integer) error = %v, want ErrDType", err)
	}
}
