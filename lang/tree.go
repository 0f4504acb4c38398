package lang

import (
	"log/slog"
	"strings"
)

// ScopeSeparator joins the segments of a scope path in marker arguments,
// command-line overrides, and diagnostics.
const ScopeSeparator = "/"

// Node is one entry in a [ConfigTree]: a [Group], a [Module], or a
// [Parameter].
type Node interface {
	// Name returns the path segment addressing the node in its parent.
	Name() string

	// Declared returns where the node was declared.
	Declared() Position
}

// branch holds ordered named children. Order follows declaration order,
// which marshaling preserves.
type branch struct {
	order []Node
	index map[string]Node
}

func (b *branch) child(name string) (Node, bool) {
	n, ok := b.index[name]

	return n, ok
}

func (b *branch) add(n Node) {
	if b.index == nil {
		b.index = make(map[string]Node)
	}

	b.order = append(b.order, n)
	b.index[n.Name()] = n
}

// Children returns the ordered child nodes.
func (b *branch) Children() []Node { return b.order }

// Group is an interior tree node introduced by a scope segment.
type Group struct {
	branch

	name string
	pos  Position
}

// Name implements [Node].
func (g *Group) Name() string { return g.name }

// Declared implements [Node].
func (g *Group) Declared() Position { return g.pos }

// Module is an interior tree node introduced by an included module.
type Module struct {
	branch

	alias  string // Binding or scope the module is addressed by
	module string // Dotted module reference as written
	file   string // Resolved source path
	pos    Position
}

// Name implements [Node].
func (m *Module) Name() string { return m.alias }

// Declared implements [Node].
func (m *Module) Declared() Position { return m.pos }

// ModuleRef returns the dotted module reference as written in source.
func (m *Module) ModuleRef() string { return m.module }

// File returns the resolved path of the module source.
func (m *Module) File() string { return m.file }

// Parameter is a leaf tree node declared by a parameter marker.
type Parameter struct {
	name  string
	dtype DType
	value any
	desc  string
	pos   Position
}

// Name implements [Node].
func (p *Parameter) Name() string { return p.name }

// Declared implements [Node].
func (p *Parameter) Declared() Position { return p.pos }

// DType returns the declared parameter type.
func (p *Parameter) DType() DType { return p.dtype }

// Value returns the effective parameter value.
func (p *Parameter) Value() any { return p.value }

// Desc returns the declared description, empty when none was given.
func (p *Parameter) Desc() string { return p.desc }

// Required reports whether the parameter still holds the required sentinel.
func (p *Parameter) Required() bool {
	s, ok := p.value.(string)

	return ok && s == RequiredSentinel
}

// Set replaces the parameter value after coercing v to the declared dtype.
func (p *Parameter) Set(v any) error {
	coerced, err := Coerce(p.dtype, v)
	if err != nil {
		return err
	}

	p.value = coerced

	return nil
}

// ConfigTree is the hierarchy of parameters extracted from an entry file
// and everything it includes. Parameters are addressed by scope path, the
// ambient module aliases and scope segments from the root down to the
// parameter name.
type ConfigTree struct {
	branch

	entry string
}

// NewConfigTree returns an empty tree for the given entry file.
func NewConfigTree(entry string) *ConfigTree {
	return &ConfigTree{entry: entry}
}

// Entry returns the path of the entry file the tree was extracted from.
func (t *ConfigTree) Entry() string { return t.entry }

// SplitPath splits a scope path on [ScopeSeparator], dropping empty
// segments.
func SplitPath(path string) []string {
	parts := strings.Split(path, ScopeSeparator)

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// JoinPath joins path segments with [ScopeSeparator].
func JoinPath(path []string) string { return strings.Join(path, ScopeSeparator) }

// descend walks to the branch at path, creating [Group] nodes for missing
// segments. It fails with [ErrScopeCollision] when a segment is occupied by
// a parameter.
func (t *ConfigTree) descend(path []string, pos Position) (*branch, error) {
	b := &t.branch

	for i, seg := range path {
		n, ok := b.child(seg)
		if !ok {
			g := &Group{name: seg, pos: pos}
			b.add(g)
			b = &g.branch

			continue
		}

		switch node := n.(type) {
		case *Group:
			b = &node.branch
		case *Module:
			b = &node.branch
		default:
			return nil, collisionError(path[:i+1], n, pos)
		}
	}

	return b, nil
}

// AddParameter inserts a parameter leaf at path. The final path segment is
// the parameter name.
func (t *ConfigTree) AddParameter(
	path []string,
	dtype DType,
	value any,
	desc string,
	pos Position,
) (*Parameter, error) {
	if len(path) == 0 {
		return nil, ErrScopeCollision.With(slog.String("path", ""))
	}

	b, err := t.descend(path[:len(path)-1], pos)
	if err != nil {
		return nil, err
	}

	name := path[len(path)-1]
	if prev, ok := b.child(name); ok {
		return nil, collisionError(path, prev, pos)
	}

	p := &Parameter{name: name, dtype: dtype, value: value, desc: desc, pos: pos}
	b.add(p)

	return p, nil
}

// AddModule inserts a module node at path. The final path segment is the
// module alias.
func (t *ConfigTree) AddModule(
	path []string,
	moduleRef, file string,
	pos Position,
) (*Module, error) {
	if len(path) == 0 {
		return nil, ErrScopeCollision.With(slog.String("path", ""))
	}

	b, err := t.descend(path[:len(path)-1], pos)
	if err != nil {
		return nil, err
	}

	alias := path[len(path)-1]
	if prev, ok := b.child(alias); ok {
		return nil, collisionError(path, prev, pos)
	}

	m := &Module{alias: alias, module: moduleRef, file: file, pos: pos}
	b.add(m)

	return m, nil
}

func collisionError(path []string, prev Node, pos Position) error {
	return ErrScopeCollision.With(
		slog.String("path", JoinPath(path)),
		slog.Any("declared", prev.Declared()),
		slog.Any("redeclared", pos),
	)
}

// Lookup returns the node at path.
func (t *ConfigTree) Lookup(path []string) (Node, bool) {
	b := &t.branch

	for i, seg := range path {
		n, ok := b.child(seg)
		if !ok {
			return nil, false
		}

		if i == len(path)-1 {
			return n, true
		}

		switch node := n.(type) {
		case *Group:
			b = &node.branch
		case *Module:
			b = &node.branch
		default:
			return nil, false
		}
	}

	return nil, false
}

// Param returns the parameter leaf at path.
func (t *ConfigTree) Param(path []string) (*Parameter, bool) {
	n, ok := t.Lookup(path)
	if !ok {
		return nil, false
	}

	p, ok := n.(*Parameter)

	return p, ok
}

// Walk visits every node depth-first in declaration order. The path passed
// to fn addresses the visited node from the root. Walking stops at the
// first error.
func (t *ConfigTree) Walk(fn func(path []string, n Node) error) error {
	return walkBranch(&t.branch, nil, fn)
}

func walkBranch(b *branch, path []string, fn func([]string, Node) error) error {
	for _, n := range b.order {
		sub := append(path[:len(path):len(path)], n.Name())

		if err := fn(sub, n); err != nil {
			return err
		}

		switch node := n.(type) {
		case *Group:
			if err := walkBranch(&node.branch, sub, fn); err != nil {
				return err
			}
		case *Module:
			if err := walkBranch(&node.branch, sub, fn); err != nil {
				return err
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the tree. Compilation applies overrides to a
// clone so the extracted tree stays unmodified.
func (t *ConfigTree) Clone() *ConfigTree {
	clone := NewConfigTree(t.entry)
	cloneBranch(&t.branch, &clone.branch)

	return clone
}

func cloneBranch(src, dst *branch) {
	for _, n := range src.order {
		switch node := n.(type) {
		case *Group:
			g := &Group{name: node.name, pos: node.pos}
			cloneBranch(&node.branch, &g.branch)
			dst.add(g)
		case *Module:
			m := &Module{
				alias:  node.alias,
				module: node.module,
				file:   node.file,
				pos:    node.pos,
			}
			cloneBranch(&node.branch, &m.branch)
			dst.add(m)
		case *Parameter:
			p := *node
			dst.add(&p)
		}
	}
}
