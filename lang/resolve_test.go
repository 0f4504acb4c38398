package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()

	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%q): %v", path, err)
		}
	}

	return fsys
}

func treeValues(t *testing.T, tree *ConfigTree) map[string]any {
	t.Helper()

	out := map[string]any{}

	err := tree.Walk(func(path []string, n Node) error {
		if p, ok := n.(*Parameter); ok {
			out[JoinPath(path)] = p.Value()
		}

		return nil
	})
	if err != nil {
		t.Fatalf("Walk error: %v", err)
	}

	return out
}

func TestExtractSingleFile(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "url = PyParam('http://example.com', 'str', '', 'service url')\n" +
			"retries = PyParam(3, 'int', 'net')\n" +
			"backoff = PyParam(1.5, 'float', 'net')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want := map[string]any{
		"url":         "http://example.com",
		"net/retries": int64(3),
		"net/backoff": 1.5,
	}

	if diff := cmp.Diff(want, treeValues(t, tree)); diff != "" {
		t.Errorf("tree values mismatch (-want +got):\n%s", diff)
	}

	p, ok := tree.Param([]string{"url"})
	if !ok {
		t.Fatal("url not found")
	}

	if p.Desc() != "service url" {
		t.Errorf("desc = %q", p.Desc())
	}
}

func TestExtractIncludeModule(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "cfg = IncludeModule('pkg.settings', 'cfg')\n" +
			"x = PyParam(1, 'int')\n",
		"pkg/settings.py": "port = PyParam(8080, 'int')\n" +
			"host = PyParam('localhost', 'str')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want := map[string]any{
		"cfg/port": int64(8080),
		"cfg/host": "localhost",
		"x":        int64(1),
	}

	if diff := cmp.Diff(want, treeValues(t, tree)); diff != "" {
		t.Errorf("tree values mismatch (-want +got):\n%s", diff)
	}

	n, ok := tree.Lookup([]string{"cfg"})
	if !ok {
		t.Fatal("cfg module not found")
	}

	if m, ok := n.(*Module); !ok || m.ModuleRef() != "pkg.settings" {
		t.Errorf("cfg node = %#v", n)
	}
}

func TestExtractAliasDefaultsToModuleName(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py":         "s = IncludeModule('pkg.settings')\n",
		"pkg/settings.py": "port = PyParam(8080, 'int')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if _, ok := tree.Param([]string{"settings", "port"}); !ok {
		t.Errorf("settings/port not found; values: %v", treeValues(t, tree))
	}
}

func TestExtractIncludeSourceInheritsScope(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "grp = IncludeModule('pkg.inner', 'grp')\n",
		"pkg/inner.py": "IncludeSource('shared.constants')\n" +
			"own = PyParam(1, 'int')\n",
		"shared/constants.py": "pi = PyParam(3.14, 'float', 'math')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	// The splice shares the including module's ambient scope.
	want := map[string]any{
		"grp/math/pi": 3.14,
		"grp/own":     int64(1),
	}

	if diff := cmp.Diff(want, treeValues(t, tree)); diff != "" {
		t.Errorf("tree values mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDecoratorInclude(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "# @import_pyparams_as_module(\"cfg\")\n" +
			"import pkg.settings as s\n",
		"pkg/settings.py": "port = PyParam(8080, 'int')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if _, ok := tree.Param([]string{"cfg", "port"}); !ok {
		t.Errorf("cfg/port not found; values: %v", treeValues(t, tree))
	}
}

func TestExtractDerivation(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"derived.py": "DeriveModule('base.main')\n" +
			"writer = ReplaceModule('alt.writer')\n",
		"base/main.py":  "writer = IncludeModule('pkg.writer')\n",
		"pkg/writer.py": "kind = PyParam('csv', 'str')\n",
		"alt/writer.py": "kind = PyParam('json', 'str')\n",
	})

	tree, err := Extract(context.Background(), "derived.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	p, ok := tree.Param([]string{"writer", "kind"})
	if !ok {
		t.Fatalf("writer/kind not found; values: %v", treeValues(t, tree))
	}

	if p.Value() != "json" {
		t.Errorf("writer/kind = %v, want json (replacement applied)", p.Value())
	}
}

func TestExtractDerivationByScope(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"derived.py": "DeriveModule('base.main')\n" +
			"ReplaceModule('alt.writer', 'out')\n",
		"base/main.py":  "w = IncludeModule('pkg.writer', 'out')\n",
		"pkg/writer.py": "kind = PyParam('csv', 'str')\n",
		"alt/writer.py": "kind = PyParam('json', 'str')\n",
	})

	tree, err := Extract(context.Background(), "derived.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	p, ok := tree.Param([]string{"out", "kind"})
	if !ok {
		t.Fatalf("out/kind not found; values: %v", treeValues(t, tree))
	}

	if p.Value() != "json" {
		t.Errorf("out/kind = %v, want json", p.Value())
	}
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		entry string
		want  error
	}{
		{
			name: "missing module",
			files: map[string]string{
				"main.py": "m = IncludeModule('no.such.module')\n",
			},
			entry: "main.py",
			want:  ErrModuleNotFound,
		},
		{
			name: "include cycle",
			files: map[string]string{
				"main.py": "a = IncludeModule('a')\n",
				"a.py":    "b = IncludeModule('b')\n",
				"b.py":    "a = IncludeModule('a')\n",
			},
			entry: "main.py",
			want:  ErrImportCycle,
		},
		{
			name: "self cycle via source",
			files: map[string]string{
				"main.py": "IncludeSource('main')\n",
			},
			entry: "main.py",
			want:  ErrImportCycle,
		},
		{
			name: "scope collision",
			files: map[string]string{
				"main.py": "x = PyParam(1, 'int')\n" +
					"x = PyParam(2, 'int')\n",
			},
			entry: "main.py",
			want:  ErrScopeCollision,
		},
		{
			name: "collision across include",
			files: map[string]string{
				"main.py": "cfg = IncludeModule('pkg.settings', 'cfg')\n" +
					"cfg = PyParam(1, 'int')\n",
				"pkg/settings.py": "port = PyParam(1, 'int')\n",
			},
			entry: "main.py",
			want:  ErrScopeCollision,
		},
		{
			name: "replace outside derivation",
			files: map[string]string{
				"main.py": "w = ReplaceModule('alt.writer')\n",
			},
			entry: "main.py",
			want:  ErrReplaceTarget,
		},
		{
			name: "unmatched replacement",
			files: map[string]string{
				"derived.py": "DeriveModule('base.main')\n" +
					"nope = ReplaceModule('alt.writer')\n",
				"base/main.py":  "x = PyParam(1, 'int')\n",
				"alt/writer.py": "kind = PyParam('json', 'str')\n",
			},
			entry: "derived.py",
			want:  ErrReplaceTarget,
		},
		{
			name: "multiple derivations",
			files: map[string]string{
				"derived.py":   "DeriveModule('base.main')\nDeriveModule('base.main')\n",
				"base/main.py": "x = PyParam(1, 'int')\n",
			},
			entry: "derived.py",
			want:  ErrDeriveConflict,
		},
		{
			name: "derivation with stray marker",
			files: map[string]string{
				"derived.py":   "DeriveModule('base.main')\nx = PyParam(1, 'int')\n",
				"base/main.py": "y = PyParam(2, 'int')\n",
			},
			entry: "derived.py",
			want:  ErrDeriveConflict,
		},
		{
			name:  "unreadable entry",
			files: map[string]string{},
			entry: "main.py",
			want:  ErrReadInput,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := memFS(t, tt.files)

			_, err := Extract(context.Background(), tt.entry, WithFS(fsys))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractModuleNotFoundSuggests(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py":         "m = IncludeModule('pkg.setings')\n",
		"pkg/settings.py": "port = PyParam(1, 'int')\n",
	})

	_, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("error = %v, want ErrModuleNotFound", err)
	}
}

func TestExtractWithRoots(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"src/main.py":     "m = IncludeModule('settings')\n",
		"lib/settings.py": "port = PyParam(8080, 'int')\n",
	})

	tree, err := Extract(
		context.Background(),
		"src/main.py",
		WithFS(fsys),
		WithRoots("src", "lib"),
	)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if _, ok := tree.Param([]string{"settings", "port"}); !ok {
		t.Errorf("settings/port not found; values: %v", treeValues(t, tree))
	}
}

func TestExtractAmbiguousModule(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"src/main.py":     "m = IncludeModule('settings')\n",
		"src/settings.py": "a = PyParam(1, 'int')\n",
		"lib/settings.py": "b = PyParam(2, 'int')\n",
	})

	_, err := Extract(
		context.Background(),
		"src/main.py",
		WithFS(fsys),
		WithRoots("src", "lib"),
	)
	if !errors.Is(err, ErrModuleAmbiguous) {
		t.Errorf("error = %v, want ErrModuleAmbiguous", err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "x = PyParam(1, 'int')\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Extract(ctx, "main.py", WithFS(fsys)); err == nil {
		t.Error("Extract with cancelled context succeeded")
	}
}

func TestExtractAliasedModulesIndependent(t *testing.T) {
	t.Parallel()

	fsys := memFS(t, map[string]string{
		"main.py": "left = IncludeModule('pkg.opt', 'left')\n" +
			"right = IncludeModule('pkg.opt', 'right')\n",
		"pkg/opt.py": "lr = PyParam(0.1, 'float')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want := map[string]any{
		"left/lr":  0.1,
		"right/lr": 0.1,
	}

	if diff := cmp.Diff(want, treeValues(t, tree)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	// The two includes own independent subtrees.
	p, ok := tree.Param(SplitPath("left/lr"))
	if !ok {
		t.Fatal("left/lr not found")
	}

	if err := p.Set(0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q, ok := tree.Param(SplitPath("right/lr"))
	if !ok {
		t.Fatal("right/lr not found")
	}

	if got := q.Value(); got != 0.1 {
		t.Errorf("right/lr = %v after setting left/lr, want 0.1", got)
	}
}

func TestExtractLeadingNumberStatement(t *testing.T) {
	t.Parallel()

	// A source file whose first byte is a digit is still scannable.
	fsys := memFS(t, map[string]string{
		"main.py": "1\nx = PyParam(2, 'int')\n",
	})

	tree, err := Extract(context.Background(), "main.py", WithFS(fsys))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want := map[string]any{"x": int64(2)}

	if diff := cmp.Diff(want, treeValues(t, tree)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}
