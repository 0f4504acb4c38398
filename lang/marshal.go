package lang

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/goccy/go-yaml"
	"github.com/zeebo/xxh3"
)

// versionComment heads marshaled configuration so a later load can detect
// that the sources changed shape since the file was written.
const versionComment = "# pyparam-config "

var versionCommentRE = regexp.MustCompile(`(?m)^# pyparam-config ([0-9a-f]+)`)

// Digest fingerprints the shape of the tree: every parameter path and its
// dtype, independent of values.
func (t *ConfigTree) Digest() string {
	var buf strings.Builder

	_ = t.Walk(func(path []string, n Node) error {
		if p, ok := n.(*Parameter); ok {
			buf.WriteString(JoinPath(path))
			buf.WriteByte(' ')
			buf.WriteString(string(p.DType()))
			buf.WriteByte('\n')
		}

		return nil
	})

	return strconv.FormatUint(xxh3.HashString(buf.String()), 16)
}

// ToMap returns the ordered mapping form of the tree. Each parameter leaf
// becomes a {dtype, value} mapping; groups and modules nest.
func (t *ConfigTree) ToMap() yaml.MapSlice {
	return branchToMap(&t.branch)
}

func branchToMap(b *branch) yaml.MapSlice {
	out := make(yaml.MapSlice, 0, len(b.order))

	for _, n := range b.order {
		switch node := n.(type) {
		case *Group:
			out = append(out, yaml.MapItem{
				Key: node.name, Value: branchToMap(&node.branch),
			})
		case *Module:
			out = append(out, yaml.MapItem{
				Key: node.alias, Value: branchToMap(&node.branch),
			})
		case *Parameter:
			out = append(out, yaml.MapItem{
				Key: node.name,
				Value: yaml.MapSlice{
					{Key: "dtype", Value: string(node.dtype)},
					{Key: "value", Value: yamlValue(node.value)},
				},
			})
		}
	}

	return out
}

// yamlValue converts scanned container values into forms the encoder
// renders with declaration order intact.
func yamlValue(v any) any {
	switch val := v.(type) {
	case Dict:
		out := make(yaml.MapSlice, len(val))
		for i, e := range val {
			out[i] = yaml.MapItem{Key: e.Key, Value: yamlValue(e.Val)}
		}

		return out
	case List:
		return yamlItems(val)
	case Tuple:
		return yamlItems(val)
	case Set:
		return yamlItems(val)
	}

	return v
}

func yamlItems(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = yamlValue(item)
	}

	return out
}

// MarshalYAML renders the tree as editable YAML. Parameter descriptions
// become comments above their leaves, and the shape digest heads the
// document.
func (t *ConfigTree) MarshalYAML() ([]byte, error) {
	cm := yaml.CommentMap{}

	_ = t.Walk(func(path []string, n Node) error {
		p, ok := n.(*Parameter)
		if !ok || p.desc == "" {
			return nil
		}

		key := "$." + strings.Join(path, ".")
		cm[key] = []*yaml.Comment{yaml.HeadComment(" " + p.desc)}

		return nil
	})

	opts := []yaml.EncodeOption{yaml.Indent(2)}
	if len(cm) > 0 {
		opts = append(opts, yaml.WithComment(cm))
	}

	body, err := yaml.MarshalWithOptions(t.ToMap(), opts...)
	if err != nil {
		return nil, WrapError(err)
	}

	head := versionComment + t.Digest() + "\n"

	return append([]byte(head), body...), nil
}

// Overrides is a nested mapping of scope segments to replacement values.
// Leaves hold the raw value to apply; interior keys descend the tree.
type Overrides map[string]any

// ParseOverrides decodes an edited configuration document into overrides,
// also returning the shape digest recorded when the document was written,
// or an empty string when absent.
func ParseOverrides(data []byte) (Overrides, string, error) {
	digest := ""
	if m := versionCommentRE.FindSubmatch(data); m != nil {
		digest = string(m[1])
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return Overrides{}, digest, nil
	}

	var doc yaml.MapSlice

	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, "", ErrOverrideMalformed.Wrap(err)
	}

	o, err := overridesFrom(doc, nil)
	if err != nil {
		return nil, "", err
	}

	return o, digest, nil
}

func overridesFrom(doc yaml.MapSlice, path []string) (Overrides, error) {
	out := make(Overrides, len(doc))

	for _, item := range doc {
		key, ok := item.Key.(string)
		if !ok {
			return nil, ErrOverrideMalformed.With(
				slog.String("path", JoinPath(path)),
				slog.String("key", fmt.Sprintf("%v", item.Key)),
			)
		}

		sub := append(path[:len(path):len(path)], key)

		switch v := item.Value.(type) {
		case yaml.MapSlice:
			if value, leaf := leafValue(v); leaf {
				out[key] = overrideValue(value)

				continue
			}

			nested, err := overridesFrom(v, sub)
			if err != nil {
				return nil, err
			}

			out[key] = nested

		default:
			out[key] = overrideValue(v)
		}
	}

	return out, nil
}

// leafValue recognizes the {dtype, value} leaf form emitted by
// [ConfigTree.MarshalYAML] and extracts its value. Both keys must be
// present and dtype must be a scalar string, so a group whose children
// happen to be named "value" or "dtype" still reads as a group.
func leafValue(ms yaml.MapSlice) (any, bool) {
	var (
		value    any
		hasValue bool
		hasDType bool
		other    bool
	)

	for _, item := range ms {
		switch item.Key {
		case "value":
			value, hasValue = item.Value, true
		case "dtype":
			_, hasDType = item.Value.(string)
		default:
			other = true
		}
	}

	return value, hasValue && hasDType && !other
}

// overrideValue maps decoded YAML values into the canonical forms [Coerce]
// accepts.
func overrideValue(v any) any {
	switch val := v.(type) {
	case yaml.MapSlice:
		out := make(Dict, len(val))
		for i, item := range val {
			out[i] = DictEntry{Key: item.Key, Val: overrideValue(item.Value)}
		}

		return out
	case map[string]any:
		out := make(Dict, 0, len(val))
		for k, item := range val {
			out = append(out, DictEntry{Key: k, Val: overrideValue(item)})
		}

		return out
	case []any:
		out := make(List, len(val))
		for i, item := range val {
			out[i] = overrideValue(item)
		}

		return out
	}

	return normalizeScalar(v)
}

// ParseSetFlag decodes one "scope/path=value" assignment, with the value
// parsed as a YAML scalar.
func ParseSetFlag(s string) (Overrides, error) {
	eq := strings.Index(s, "=")
	if eq <= 0 {
		return nil, ErrOverrideMalformed.With(slog.String("set", s))
	}

	path := SplitPath(s[:eq])
	if len(path) == 0 {
		return nil, ErrOverrideMalformed.With(slog.String("set", s))
	}

	var value any
	if err := yaml.Unmarshal([]byte(s[eq+1:]), &value); err != nil {
		return nil, ErrOverrideMalformed.Wrap(err).With(slog.String("set", s))
	}

	o := Overrides{path[len(path)-1]: overrideValue(value)}
	for i := len(path) - 2; i >= 0; i-- {
		o = Overrides{path[i]: o}
	}

	return o, nil
}

// Merge folds src into o, with values from src winning.
func (o Overrides) Merge(src Overrides) error {
	if err := mergo.Merge(&o, src, mergo.WithOverride); err != nil {
		return ErrOverrideMalformed.Wrap(err)
	}

	return nil
}

// Apply walks o into the tree, coercing and setting each leaf value. With
// ignoreMissing, overrides addressing no parameter are skipped instead of
// failing.
func (t *ConfigTree) Apply(o Overrides, ignoreMissing bool) error {
	return t.apply(o, nil, ignoreMissing)
}

func (t *ConfigTree) apply(o Overrides, path []string, ignoreMissing bool) error {
	for key, v := range o {
		sub := append(path[:len(path):len(path)], key)

		if nested, ok := v.(Overrides); ok {
			if _, found := t.Lookup(sub); !found && ignoreMissing {
				continue
			}

			if err := t.apply(nested, sub, ignoreMissing); err != nil {
				return err
			}

			continue
		}

		p, found := t.Param(sub)
		if !found {
			if ignoreMissing {
				continue
			}

			return ErrOverrideNotFound.With(slog.String("path", JoinPath(sub)))
		}

		if err := p.Set(v); err != nil {
			return WrapError(err).With(slog.String("path", JoinPath(sub)))
		}
	}

	return nil
}
