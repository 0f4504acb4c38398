package lang

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/afero"

	"github.com/ardnew/pyparam/log"
)

// maxSuggestions bounds the fuzzy matches offered for an unresolved module.
const maxSuggestions = 3

// resolver walks an entry file and everything it includes, populating a
// [ConfigTree] and recording the unit graph compilation rewrites.
type resolver struct {
	ctx   context.Context
	fsys  afero.Fs
	roots []string
	cache *ScanCache
	log   log.Logger

	stack []string // Files on the current include path, for cycle detection
}

// substitution is one pending module replacement declared by a deriving
// file.
type substitution struct {
	path string
	pos  Position
	used bool
}

// unit is one resolved source file. Marker maps are keyed by the marker's
// index in scan.Markers.
type unit struct {
	file    string
	scan    *fileScan
	ambient []string

	derived *unit // Base unit when this file derives another

	include   map[int]*unit    // Resolved target per include marker
	alias     map[int]string   // Tree alias per module include marker
	modref    map[int]string   // Resolved module ref, after any replacement
	paramPath map[int][]string // Tree path per bound parameter marker
}

// resolveEntry resolves the entry file into a tree and its unit graph.
func (r *resolver) resolveEntry(entry string) (*ConfigTree, *unit, error) {
	tree := NewConfigTree(entry)

	u, err := r.resolveFile(entry, nil, nil, tree)
	if err != nil {
		return nil, nil, err
	}

	return tree, u, nil
}

func (r *resolver) resolveFile(
	file string,
	ambient []string,
	subst map[string]*substitution,
	tree *ConfigTree,
) (*unit, error) {
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return nil, WrapError(err)
		}
	}

	if slices.Contains(r.stack, file) {
		return nil, ErrImportCycle.With(
			slog.String("file", file),
			slog.String("chain", strings.Join(append(r.stack, file), " -> ")),
		)
	}

	r.stack = append(r.stack, file)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	src, err := readFile(r.fsys, file)
	if err != nil {
		return nil, WrapError(err).With(slog.String("file", file))
	}

	scan, err := r.cache.scan(file, src)
	if err != nil {
		return nil, err
	}

	r.log.Debug("scanned source",
		slog.String("file", file),
		slog.Int("markers", len(scan.Markers)),
		slog.String("ambient", JoinPath(ambient)),
	)

	if hasDerivation(scan) {
		return r.resolveDerivation(file, scan, ambient, subst, tree)
	}

	u := &unit{
		file:      file,
		scan:      scan,
		ambient:   ambient,
		include:   make(map[int]*unit),
		alias:     make(map[int]string),
		modref:    make(map[int]string),
		paramPath: make(map[int][]string),
	}

	for idx, m := range scan.Markers {
		if err := r.resolveMarker(u, idx, m, subst, tree); err != nil {
			return nil, err
		}
	}

	return u, nil
}

func (r *resolver) resolveMarker(
	u *unit,
	idx int,
	m marker,
	subst map[string]*substitution,
	tree *ConfigTree,
) error {
	switch m.Kind {
	case markerParam:
		if m.Binding == "" {
			// An unbound parameter has no address in the tree. Its
			// literal still replaces the call at compile time.
			r.log.Trace("unbound parameter", markerLogAttrs(m)...)

			return nil
		}

		path := append(
			u.ambient[:len(u.ambient):len(u.ambient)],
			append(SplitPath(m.Scope), m.Binding)...,
		)

		if _, err := tree.AddParameter(path, m.DType, m.Value, m.Desc, m.Pos); err != nil {
			return err
		}

		u.paramPath[idx] = path

		r.log.Trace("parameter declared",
			slog.String("path", JoinPath(path)),
			slog.String("dtype", string(m.DType)),
		)

		return nil

	case markerIncludeModule:
		return r.resolveInclude(u, idx, m, subst, tree)

	case markerIncludeSource:
		target, err := r.locateModule(m.Path, m.Pos)
		if err != nil {
			return err
		}

		child, err := r.resolveFile(target, u.ambient, subst, tree)
		if err != nil {
			return err
		}

		u.include[idx] = child

		return nil

	case markerReplace:
		return ErrReplaceTarget.
			Wrap(NewError("replacement declared outside a deriving file")).
			WithPosition(m.Pos)
	}

	return nil
}

func (r *resolver) resolveInclude(
	u *unit,
	idx int,
	m marker,
	subst map[string]*substitution,
	tree *ConfigTree,
) error {
	// Substitutions and the tree alias both key on the explicit scope,
	// falling back to the binding or the final module path segment.
	key := m.Scope
	if key == "" {
		key = m.Binding
	}

	ref := m.Path
	if sub, ok := subst[key]; ok && key != "" {
		ref = sub.path
		sub.used = true

		r.log.Debug("module replaced",
			slog.String("key", key),
			slog.String("module", m.Path),
			slog.String("with", ref),
		)
	}

	alias := m.Scope
	if alias == "" {
		alias = lastSegment(m.Path)
	}

	target, err := r.locateModule(ref, m.Pos)
	if err != nil {
		return err
	}

	if _, err := tree.AddModule(
		append(u.ambient[:len(u.ambient):len(u.ambient)], alias),
		ref, target, m.Pos,
	); err != nil {
		return err
	}

	child, err := r.resolveFile(
		target,
		append(u.ambient[:len(u.ambient):len(u.ambient)], alias),
		nil,
		tree,
	)
	if err != nil {
		return err
	}

	u.include[idx] = child
	u.alias[idx] = alias
	u.modref[idx] = ref

	return nil
}

// resolveDerivation handles a file whose markers derive another module. A
// deriving file declares only its DeriveModule and ReplaceModule markers;
// the base module provides everything else.
func (r *resolver) resolveDerivation(
	file string,
	scan *fileScan,
	ambient []string,
	outer map[string]*substitution,
	tree *ConfigTree,
) (*unit, error) {
	if outer != nil {
		return nil, ErrDeriveConflict.
			Wrap(NewError("deriving file cannot itself be derived")).
			With(slog.String("file", file))
	}

	var derive *marker

	subst := make(map[string]*substitution)

	for i := range scan.Markers {
		m := &scan.Markers[i]

		switch m.Kind {
		case markerDerive:
			if derive != nil {
				return nil, ErrDeriveConflict.
					Wrap(NewError("multiple DeriveModule markers")).
					WithPosition(m.Pos)
			}

			derive = m

		case markerReplace:
			key := m.Scope
			if key == "" {
				key = m.Binding
			}

			if key == "" {
				return nil, ErrReplaceTarget.
					Wrap(NewError("replacement has neither scope nor binding")).
					WithPosition(m.Pos)
			}

			if prev, ok := subst[key]; ok {
				return nil, ErrReplaceTarget.
					Wrap(NewError("duplicate replacement key")).
					With(slog.String("key", key), slog.Any("declared", prev.pos)).
					WithPosition(m.Pos)
			}

			subst[key] = &substitution{path: m.Path, pos: m.Pos}

		default:
			return nil, ErrDeriveConflict.WithPosition(m.Pos)
		}
	}

	target, err := r.locateModule(derive.Path, derive.Pos)
	if err != nil {
		return nil, err
	}

	r.log.Debug("deriving module",
		slog.String("file", file),
		slog.String("base", target),
		slog.Int("replacements", len(subst)),
	)

	base, err := r.resolveFile(target, ambient, subst, tree)
	if err != nil {
		return nil, err
	}

	for key, sub := range subst {
		if !sub.used {
			return nil, ErrReplaceTarget.
				With(slog.String("key", key)).
				WithPosition(sub.pos)
		}
	}

	return &unit{file: file, scan: scan, ambient: ambient, derived: base}, nil
}

func hasDerivation(scan *fileScan) bool {
	for _, m := range scan.Markers {
		if m.Kind == markerDerive {
			return true
		}
	}

	return false
}

// locateModule maps a dotted module reference to a source file under the
// search roots.
func (r *resolver) locateModule(ref string, pos Position) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(ref, ".", "/")) + ".py"

	var hits []string

	for _, root := range r.roots {
		path := filepath.Join(root, rel)

		info, err := r.fsys.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		hits = append(hits, path)
	}

	switch len(hits) {
	case 1:
		return hits[0], nil

	case 0:
		return "", ErrModuleNotFound.With(
			slog.String("module", ref),
			slog.String("roots", strings.Join(r.roots, ", ")),
			slog.String("suggestions", strings.Join(r.suggest(ref), ", ")),
		).WithPosition(pos)

	default:
		return "", ErrModuleAmbiguous.With(
			slog.String("module", ref),
			slog.String("files", strings.Join(hits, ", ")),
		).WithPosition(pos)
	}
}

// suggest returns the closest known module references to ref.
func (r *resolver) suggest(ref string) []string {
	candidates := r.knownModules()

	matches := fuzzy.Find(ref, candidates)
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}

	return out
}

// knownModules walks the search roots collecting every Python file as a
// dotted module reference.
func (r *resolver) knownModules() []string {
	var refs []string

	for _, root := range r.roots {
		_ = afero.Walk(r.fsys, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, ".py") {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}

			ref := strings.TrimSuffix(filepath.ToSlash(rel), ".py")
			refs = append(refs, strings.ReplaceAll(ref, "/", "."))

			return nil
		})
	}

	slices.Sort(refs)

	return slices.Compact(refs)
}

func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i+1:]
	}

	return ref
}
