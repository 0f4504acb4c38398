package lang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildTree(t *testing.T) *ConfigTree {
	t.Helper()

	tree := NewConfigTree("main.py")

	if _, err := tree.AddParameter(
		[]string{"net", "timeout"}, DTypeInt, int64(30), "seconds", Position{Line: 1},
	); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}

	if _, err := tree.AddModule(
		[]string{"db"}, "pkg.db", "pkg/db.py", Position{Line: 2},
	); err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	if _, err := tree.AddParameter(
		[]string{"db", "host"}, DTypeStr, "localhost", "", Position{Line: 3},
	); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}

	return tree
}

func TestTreeLookup(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)

	p, ok := tree.Param([]string{"net", "timeout"})
	if !ok {
		t.Fatal("net/timeout not found")
	}

	if p.DType() != DTypeInt || p.Value() != int64(30) || p.Desc() != "seconds" {
		t.Errorf("parameter = %q %v %q", p.DType(), p.Value(), p.Desc())
	}

	if _, ok := tree.Param([]string{"db", "host"}); !ok {
		t.Error("db/host not found")
	}

	if _, ok := tree.Param([]string{"net", "missing"}); ok {
		t.Error("net/missing unexpectedly found")
	}

	n, ok := tree.Lookup([]string{"db"})
	if !ok {
		t.Fatal("db not found")
	}

	m, ok := n.(*Module)
	if !ok {
		t.Fatalf("db node type = %T, want *Module", n)
	}

	if m.ModuleRef() != "pkg.db" || m.File() != "pkg/db.py" {
		t.Errorf("module ref/file = %q/%q", m.ModuleRef(), m.File())
	}
}

func TestTreeCollisions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		add  func(*ConfigTree) error
	}{
		{
			name: "duplicate parameter",
			add: func(tree *ConfigTree) error {
				_, err := tree.AddParameter(
					[]string{"net", "timeout"}, DTypeInt, int64(1), "", Position{Line: 9},
				)

				return err
			},
		},
		{
			name: "parameter over module",
			add: func(tree *ConfigTree) error {
				_, err := tree.AddParameter(
					[]string{"db"}, DTypeStr, "", "", Position{Line: 9},
				)

				return err
			},
		},
		{
			name: "group segment through parameter",
			add: func(tree *ConfigTree) error {
				_, err := tree.AddParameter(
					[]string{"net", "timeout", "nested"}, DTypeInt, int64(1), "", Position{Line: 9},
				)

				return err
			},
		},
		{
			name: "module over group",
			add: func(tree *ConfigTree) error {
				_, err := tree.AddModule(
					[]string{"net"}, "pkg.net", "pkg/net.py", Position{Line: 9},
				)

				return err
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := buildTree(t)

			if err := tt.add(tree); !errors.Is(err, ErrScopeCollision) {
				t.Errorf("error = %v, want ErrScopeCollision", err)
			}
		})
	}
}

func TestTreeWalkOrder(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)

	var paths []string

	err := tree.Walk(func(path []string, n Node) error {
		paths = append(paths, JoinPath(path))

		return nil
	})
	if err != nil {
		t.Fatalf("Walk error: %v", err)
	}

	want := []string{"net", "net/timeout", "db", "db/host"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeClone(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)
	clone := tree.Clone()

	p, ok := clone.Param([]string{"net", "timeout"})
	if !ok {
		t.Fatal("clone missing net/timeout")
	}

	if err := p.Set(int64(99)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	orig, _ := tree.Param([]string{"net", "timeout"})
	if orig.Value() != int64(30) {
		t.Errorf("original mutated: %v", orig.Value())
	}

	if p.Value() != int64(99) {
		t.Errorf("clone value = %v, want 99", p.Value())
	}
}

func TestParameterSet(t *testing.T) {
	t.Parallel()

	tree := buildTree(t)
	p, _ := tree.Param([]string{"net", "timeout"})

	if err := p.Set("not an int"); !errors.Is(err, ErrValueType) {
		t.Errorf("Set(string) error = %v, want ErrValueType", err)
	}

	if err := p.Set(uint64(7)); err != nil {
		t.Fatalf("Set(uint64): %v", err)
	}

	if p.Value() != int64(7) {
		t.Errorf("value = %v, want int64(7)", p.Value())
	}
}

func TestParameterRequired(t *testing.T) {
	t.Parallel()

	tree := NewConfigTree("main.py")

	p, err := tree.AddParameter(
		[]string{"token"}, DTypeStr, RequiredSentinel, "", Position{},
	)
	if err != nil {
		t.Fatalf("AddParameter: %v", err)
	}

	if !p.Required() {
		t.Error("Required() = false for sentinel value")
	}

	if err := p.Set("secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if p.Required() {
		t.Error("Required() = true after Set")
	}
}

func TestSplitJoinPath(t *testing.T) {
	t.Parallel()

	if got := SplitPath("a/b/c"); !cmp.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("SplitPath = %v", got)
	}

	if got := SplitPath(""); len(got) != 0 {
		t.Errorf("SplitPath(empty) = %v, want empty", got)
	}

	if got := SplitPath("/a//b/"); !cmp.Equal(got, []string{"a", "b"}) {
		t.Errorf("SplitPath with empties = %v", got)
	}

	if got := JoinPath([]string{"a", "b"}); got != "a/b" {
		t.Errorf("JoinPath = %q", got)
	}
}
