package lang

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ardnew/pyparam/log"
)

// modClassPrefix prefixes the synthetic class wrapping an included module.
const modClassPrefix = "_pyparam_module__"

// compileUnit re-emits the source of u with every marker rewritten: bound
// and bare parameters become their effective literals, module includes
// become encapsulating class definitions, and source includes are spliced
// inline. A deriving unit emits its base with substitutions already applied
// during resolution.
func compileUnit(u *unit, tree *ConfigTree, logger log.Logger) (string, error) {
	if u.derived != nil {
		return compileUnit(u.derived, tree, logger)
	}

	var edits []edit

	for idx, m := range u.scan.Markers {
		text, span, err := rewriteMarker(u, idx, m, tree, logger)
		if err != nil {
			return "", err
		}

		edits = append(edits, edit{start: span[0], end: span[1], text: text})
	}

	return splice(u.scan.Source, edits)
}

type edit struct {
	start, end int
	text       string
}

// splice applies non-overlapping span replacements to src.
func splice(src []byte, edits []edit) (string, error) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var buf strings.Builder

	pos := 0

	for _, e := range edits {
		if e.start < pos {
			return "", NewError("overlapping rewrites").With(
				slog.Int("offset", e.start),
			)
		}

		buf.Write(src[pos:e.start])
		buf.WriteString(e.text)
		pos = e.end
	}

	buf.Write(src[pos:])

	return buf.String(), nil
}

func rewriteMarker(
	u *unit,
	idx int,
	m marker,
	tree *ConfigTree,
	logger log.Logger,
) (string, [2]int, error) {
	switch m.Kind {
	case markerParam:
		text, err := renderParam(u, idx, m, tree)
		if err != nil {
			return "", [2]int{}, err
		}

		return text, [2]int{m.CallStart, m.CallEnd}, nil

	case markerIncludeModule:
		text, err := renderModule(u, idx, m, tree, logger)
		if err != nil {
			return "", [2]int{}, err
		}

		return text, [2]int{m.StmtStart, m.StmtEnd}, nil

	case markerIncludeSource:
		text, err := renderSplice(u, idx, m, tree, logger)
		if err != nil {
			return "", [2]int{}, err
		}

		return text, [2]int{m.StmtStart, m.StmtEnd}, nil
	}

	// Derivation and replacement markers never reach compilation: the
	// resolver folds them into the unit graph.
	return "", [2]int{}, NewError("unexpected marker during rewrite").
		With(slog.String("marker", m.Kind.String())).
		WithPosition(m.Pos)
}

// renderParam emits the effective literal for a parameter marker. Bound
// parameters read their value from the tree so overrides apply; unbound
// markers emit their declared literal directly.
func renderParam(u *unit, idx int, m marker, tree *ConfigTree) (string, error) {
	dtype, value := m.DType, m.Value

	if path, ok := u.paramPath[idx]; ok {
		p, found := tree.Param(path)
		if !found {
			return "", ErrOverrideNotFound.
				With(slog.String("path", JoinPath(path))).
				WithPosition(m.Pos)
		}

		dtype, value = p.DType(), p.Value()
	}

	if s, ok := value.(string); ok && s == RequiredSentinel {
		return "", ErrMissingRequired.
			With(slog.String("path", JoinPath(u.paramPath[idx]))).
			WithPosition(m.Pos)
	}

	return RenderLiteral(dtype, value), nil
}

// renderModule emits the class encapsulation replacing a module include
// statement:
//
//	class _pyparam_module__<alias>():
//	    def __init__(self):
//	        <compiled module body>
//	        self.<name> = <name>   # for each top-level binding
//	<binding> = _pyparam_module__<alias>()
func renderModule(
	u *unit,
	idx int,
	m marker,
	tree *ConfigTree,
	logger log.Logger,
) (string, error) {
	child, ok := u.include[idx]
	if !ok {
		return "", ErrModuleNotFound.WithPosition(m.Pos)
	}

	body, err := compileUnit(child, tree, logger)
	if err != nil {
		return "", err
	}

	alias := u.alias[idx]

	// The banner names the module actually compiled, which differs from
	// the marker's argument when a replacement substituted it.
	ref := u.modref[idx]
	if ref == "" {
		ref = m.Path
	}

	binding := m.Binding
	if binding == "" {
		binding = alias
	}

	class := modClassPrefix + sanitizeIdent(alias)

	lines := []string{
		"# ---- module '" + alias + "' (" + ref + ") ----",
		"class " + class + "():",
		"    def __init__(self):",
	}

	empty := true

	bodyLines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for _, line := range bodyLines {
		if strings.TrimSpace(line) == "" {
			lines = append(lines, "")

			continue
		}

		lines = append(lines, "        "+line)
		empty = false
	}

	for _, name := range topLevelNames(bodyLines) {
		lines = append(lines, "        self."+name+" = "+name)
		empty = false
	}

	if empty {
		lines = append(lines, "        pass")
	}

	lines = append(lines, binding+" = "+class+"()")

	logger.Debug("module encapsulated",
		slog.String("alias", alias),
		slog.String("binding", binding),
		slog.String("module", ref),
	)

	return indentBlock(lines, m.Indent), nil
}

// renderSplice emits the inline expansion replacing a source include
// statement.
func renderSplice(
	u *unit,
	idx int,
	m marker,
	tree *ConfigTree,
	logger log.Logger,
) (string, error) {
	child, ok := u.include[idx]
	if !ok {
		return "", ErrModuleNotFound.WithPosition(m.Pos)
	}

	body, err := compileUnit(child, tree, logger)
	if err != nil {
		return "", err
	}

	lines := []string{"# ---- begin " + m.Path + " ----"}

	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		lines = append(lines, line)
	}

	lines = append(lines, "# ---- end "+m.Path+" ----")

	logger.Debug("source spliced", slog.String("module", m.Path))

	return indentBlock(lines, m.Indent), nil
}

// indentBlock joins lines so the block sits at the 1-based column the
// replaced statement started in. The first line needs no prefix: the
// original indentation precedes the replaced span.
func indentBlock(lines []string, col int) string {
	indent := strings.Repeat(" ", max(col-1, 0))

	var buf strings.Builder

	for i, line := range lines {
		if i > 0 {
			buf.WriteByte('\n')

			if line != "" {
				buf.WriteString(indent)
			}
		}

		buf.WriteString(line)
	}

	return buf.String()
}

// Top-level binding forms recognized when exposing module names as
// instance attributes.
var topLevelRE = regexp.MustCompile(
	`^(?:def[ \t]+(\w+)|class[ \t]+(\w+)|(\w+)[ \t]*(?::[^=\n]+)?=[^=])`,
)

// topLevelNames returns the names bound at column zero of a compiled module
// body, in order of first appearance.
func topLevelNames(lines []string) []string {
	var names []string

	seen := map[string]bool{}

	for _, line := range lines {
		sub := topLevelRE.FindStringSubmatch(line)
		if sub == nil {
			continue
		}

		name := sub[1] + sub[2] + sub[3]
		if name == "" || seen[name] {
			continue
		}

		seen[name] = true
		names = append(names, name)
	}

	return names
}

var identRE = regexp.MustCompile(`[^0-9A-Za-z_]`)

func sanitizeIdent(s string) string {
	return identRE.ReplaceAllString(s, "_")
}
