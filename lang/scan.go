package lang

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Marker surface recognized by the scanner.
const (
	markerParamName         = "PyParam"
	markerIncludeModuleName = "IncludeModule"
	markerIncludeSourceName = "IncludeSource"
	markerDeriveName        = "DeriveModule"
	markerReplaceName       = "ReplaceModule"
)

// markerKind classifies a scanned marker call.
type markerKind int

const (
	markerParam markerKind = iota
	markerIncludeModule
	markerIncludeSource
	markerDerive
	markerReplace
)

func (k markerKind) String() string {
	switch k {
	case markerParam:
		return markerParamName
	case markerIncludeModule:
		return markerIncludeModuleName
	case markerIncludeSource:
		return markerIncludeSourceName
	case markerDerive:
		return markerDeriveName
	case markerReplace:
		return markerReplaceName
	}

	return "unknown"
}

var markerKinds = map[string]markerKind{
	markerParamName:         markerParam,
	markerIncludeModuleName: markerIncludeModule,
	markerIncludeSourceName: markerIncludeSource,
	markerDeriveName:        markerDerive,
	markerReplaceName:       markerReplace,
}

// marker is one scanned marker call with the spans compilation rewrites.
//
// CallStart:CallEnd covers the call expression itself. StmtStart:StmtEnd
// covers the binding through the call for markers whose whole statement is
// rewritten (includes, derivations, replacements).
type marker struct {
	Kind    markerKind
	Binding string // Bound name, empty for a bare call
	Pos     Position
	Indent  int // Column of the statement start, 1-based

	CallStart, CallEnd int
	StmtStart, StmtEnd int

	// Parameter arguments.
	Value any
	DType DType
	Desc  string

	// Include and replacement arguments.
	Path string

	Scope string
}

// fileScan is the scanned form of one source file. Source holds the text
// after decorator normalization; all marker spans index into it.
type fileScan struct {
	Source  []byte
	Markers []marker
}

// Decorator comment forms rewritten into marker statements before
// tokenizing. The comment line is blanked rather than removed so line
// numbers in diagnostics stay aligned with the file on disk.
var (
	decorModuleRE = regexp.MustCompile(
		`(?m)^[ \t]*#[ \t]*@import_pyparams_as_module\([ \t]*(?:(['"])([^'"]*)['"])?[ \t]*\)[ \t]*\r?\n([ \t]*)import[ \t]+([\w.]+)[ \t]+as[ \t]+(\w+)`,
	)
	decorSourceRE = regexp.MustCompile(
		`(?m)^[ \t]*#[ \t]*@import_pyparams_as_source\([ \t]*\)[ \t]*\r?\n([ \t]*)from[ \t]+([\w.]+)[ \t]+import[ \t]+\*`,
	)
)

// normalizeDecorators rewrites decorator-style include comments into their
// equivalent marker statements.
func normalizeDecorators(src []byte) []byte {
	src = decorModuleRE.ReplaceAllFunc(src, func(m []byte) []byte {
		sub := decorModuleRE.FindSubmatch(m)
		indent, path, alias := string(sub[3]), string(sub[4]), string(sub[5])
		scope := string(sub[2])

		return []byte("\n" + indent + alias + " = " + markerIncludeModuleName +
			"('" + path + "', '" + scope + "')")
	})

	return decorSourceRE.ReplaceAllFunc(src, func(m []byte) []byte {
		sub := decorSourceRE.FindSubmatch(m)
		indent, path := string(sub[1]), string(sub[2])

		return []byte("\n" + indent + markerIncludeSourceName + "('" + path + "')")
	})
}

// scanSource tokenizes src and collects every marker call.
func scanSource(file string, src []byte) (*fileScan, error) {
	src = normalizeDecorators(src)

	tokens, err := newTokenizer(src).tokenize()
	if err != nil {
		if se, ok := err.(*ScanError); ok {
			se.Pos.File = file
		}

		return nil, err
	}

	scan := &fileScan{Source: src}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		kind, ok := markerKinds[tok.Text]
		if !ok || tok.Kind != TokenIdent {
			continue
		}

		if i+1 >= len(tokens) || tokens[i+1].Text != "(" {
			continue
		}

		m, next, err := scanMarker(file, src, tokens, i, kind)
		if err != nil {
			return nil, err
		}

		scan.Markers = append(scan.Markers, m)
		i = next
	}

	return scan, nil
}

// scanMarker parses the marker call whose name is tokens[i] and returns the
// index of its closing parenthesis.
func scanMarker(
	file string,
	src []byte,
	tokens []Token,
	i int,
	kind markerKind,
) (marker, int, error) {
	name := tokens[i]
	open := tokens[i+1]

	end := matchingClose(tokens, i+1)
	if end < 0 {
		return marker{}, 0, &ScanError{
			Err:    ErrScan.Wrap(NewError("unterminated marker call")),
			Pos:    tokenPosition(file, name),
			Source: string(src),
		}
	}

	m := marker{
		Kind:      kind,
		Pos:       tokenPosition(file, name),
		CallStart: name.Start,
		CallEnd:   tokens[end].End,
	}

	args := splitArgs(tokens, i+2, end, open.Depth)

	if err := bindMarker(file, src, tokens, i, &m); err != nil {
		return marker{}, 0, err
	}

	if err := parseMarkerArgs(file, src, &m, args); err != nil {
		return marker{}, 0, err
	}

	return m, end, nil
}

// matchingClose returns the index of the ')' pairing with the '(' at open.
func matchingClose(tokens []Token, open int) int {
	depth := tokens[open].Depth

	for j := open + 1; j < len(tokens); j++ {
		if tokens[j].Kind == TokenOp && tokens[j].Text == ")" &&
			tokens[j].Depth == depth {
			return j
		}
	}

	return -1
}

// splitArgs returns the token ranges of each comma-separated argument
// between tokens[start:end], exclusive.
func splitArgs(tokens []Token, start, end, openDepth int) [][]Token {
	var args [][]Token

	argStart := start
	for j := start; j < end; j++ {
		if tokens[j].Kind == TokenOp && tokens[j].Text == "," &&
			tokens[j].Depth == openDepth+1 {
			args = append(args, tokens[argStart:j])
			argStart = j + 1
		}
	}

	if argStart < end {
		args = append(args, tokens[argStart:end])
	}

	return args
}

// bindMarker locates the name the marker call is bound to, if any, and
// records the statement span the binding starts.
//
// Recognized forms, where M is any marker call:
//
//	x = M(...)          plain assignment
//	x: T = M(...)       annotated assignment
//	f(x=M(...))         call keyword argument
//	def f(x=M(...)):    parameter default
//	M(...)              bare call, no binding
func bindMarker(file string, src []byte, tokens []Token, i int, m *marker) error {
	stmtFirst := i
	for stmtFirst > 0 && tokens[stmtFirst-1].Stmt == tokens[i].Stmt {
		stmtFirst--
	}

	m.Indent = tokens[stmtFirst].Col
	m.StmtStart = tokens[stmtFirst].Start
	m.StmtEnd = m.CallEnd

	if i < 1 || tokens[i-1].Text != "=" || tokens[i-1].Kind != TokenOp {
		return nil
	}

	k := i - 2
	if k < stmtFirst {
		return nil
	}

	// Plain binding: the name opens the statement, or follows '(' or ','
	// for keyword and default forms.
	if tokens[k].Kind == TokenIdent {
		if k == stmtFirst {
			m.Binding = tokens[k].Text
			m.StmtStart = tokens[k].Start

			return nil
		}

		if prev := tokens[k-1]; prev.Kind == TokenOp &&
			(prev.Text == "(" || prev.Text == ",") {
			m.Binding = tokens[k].Text
			m.StmtStart = tokens[k].Start

			return nil
		}
	}

	// Annotated binding: reverse over the annotation to ':' at statement
	// depth, then require the bound name to open the statement.
	for j := k; j > stmtFirst; j-- {
		if tokens[j].Kind == TokenOp && tokens[j].Text == ":" &&
			tokens[j].Depth == tokens[stmtFirst].Depth {
			if j-1 == stmtFirst && tokens[stmtFirst].Kind == TokenIdent {
				m.Binding = tokens[stmtFirst].Text
				m.StmtStart = tokens[stmtFirst].Start
			}

			return nil
		}
	}

	return nil
}

// parseMarkerArgs interprets the argument list according to marker kind.
func parseMarkerArgs(file string, src []byte, m *marker, args [][]Token) error {
	switch m.Kind {
	case markerParam:
		return parseParamArgs(file, src, m, args)
	case markerIncludeModule, markerReplace:
		return parsePathScopeArgs(file, src, m, args)
	case markerIncludeSource, markerDerive:
		return parsePathArgs(file, src, m, args)
	}

	return nil
}

func parseParamArgs(file string, src []byte, m *marker, args [][]Token) error {
	positional := []string{"value", "dtype", "scope", "desc"}

	fields := make(map[string][]Token, len(args))

	for n, arg := range args {
		name, rest := keywordArg(arg)
		if name == "" {
			if n >= len(positional) {
				return scanErrorAt(file, src, arg[0],
					ErrScan.Wrap(NewError("too many marker arguments")))
			}

			name, rest = positional[n], arg
		}

		fields[name] = rest
	}

	value, ok := fields["value"]
	if !ok {
		return &ScanError{
			Err:    ErrScan.Wrap(NewError("marker missing value argument")),
			Pos:    m.Pos,
			Source: string(src),
		}
	}

	v, err := parseLiteralTokens(file, src, value)
	if err != nil {
		return err
	}

	m.Value = v

	if arg, ok := fields["dtype"]; ok {
		s, err := parseStringArg(file, src, arg)
		if err != nil {
			return err
		}

		d, err := ParseDType(s)
		if err != nil {
			return WrapError(err).WithPosition(tokenPosition(file, arg[0]))
		}

		m.DType = d
	} else {
		d, ok := InferDType(v)
		if !ok {
			return scanErrorAt(file, src, value[0],
				ErrScan.Wrap(NewError("cannot infer dtype from value")))
		}

		m.DType = d
	}

	if arg, ok := fields["scope"]; ok {
		s, err := parseStringArg(file, src, arg)
		if err != nil {
			return err
		}

		m.Scope = s
	}

	if arg, ok := fields["desc"]; ok {
		s, err := parseStringArg(file, src, arg)
		if err != nil {
			return err
		}

		m.Desc = s
	}

	return nil
}

func parsePathScopeArgs(file string, src []byte, m *marker, args [][]Token) error {
	if err := parsePathArgs(file, src, m, args[:min(1, len(args))]); err != nil {
		return err
	}

	if len(args) > 1 {
		s, err := parseStringArg(file, src, args[1])
		if err != nil {
			return err
		}

		m.Scope = s
	}

	if len(args) > 2 {
		return scanErrorAt(file, src, args[2][0],
			ErrScan.Wrap(NewError("too many marker arguments")))
	}

	return nil
}

func parsePathArgs(file string, src []byte, m *marker, args [][]Token) error {
	if len(args) == 0 {
		return &ScanError{
			Err:    ErrScan.Wrap(NewError("marker missing module path argument")),
			Pos:    m.Pos,
			Source: string(src),
		}
	}

	s, err := parseStringArg(file, src, args[0])
	if err != nil {
		return err
	}

	m.Path = s

	return nil
}

// keywordArg splits a keyword argument into its name and value tokens, or
// returns an empty name for a positional argument.
func keywordArg(arg []Token) (string, []Token) {
	if len(arg) >= 2 && arg[0].Kind == TokenIdent &&
		arg[1].Kind == TokenOp && arg[1].Text == "=" {
		return arg[0].Text, arg[2:]
	}

	return "", arg
}

func parseStringArg(file string, src []byte, arg []Token) (string, error) {
	v, err := parseLiteralTokens(file, src, arg)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", scanErrorAt(file, src, arg[0],
			ErrScan.Wrap(NewError("marker argument must be a string literal")))
	}

	return s, nil
}

// parseLiteralTokens evaluates arg as a Python literal. Any identifier other
// than True, False, and None makes the argument non-literal.
func parseLiteralTokens(file string, src []byte, arg []Token) (any, error) {
	if len(arg) == 0 {
		return nil, ErrNonLiteralValue
	}

	p := literalParser{file: file, src: src, tokens: arg}

	v, err := p.parse()
	if err != nil {
		return nil, err
	}

	if !p.done() {
		return nil, scanErrorAt(file, src, p.tokens[p.pos],
			ErrNonLiteralValue)
	}

	return v, nil
}

type literalParser struct {
	file   string
	src    []byte
	tokens []Token
	pos    int
}

func (p *literalParser) done() bool { return p.pos >= len(p.tokens) }

func (p *literalParser) peek() Token {
	if p.done() {
		return Token{}
	}

	return p.tokens[p.pos]
}

func (p *literalParser) fail(tok Token, err *Error) error {
	return scanErrorAt(p.file, p.src, tok, err)
}

func (p *literalParser) parse() (any, error) {
	if p.done() {
		return nil, ErrNonLiteralValue
	}

	tok := p.tokens[p.pos]

	switch {
	case tok.Kind == TokenString:
		p.pos++

		s, err := unquotePython(tok.Text)
		if err != nil {
			return nil, p.fail(tok, ErrScan.Wrap(err))
		}

		// Adjacent string literals concatenate.
		for !p.done() && p.peek().Kind == TokenString {
			next, err := unquotePython(p.peek().Text)
			if err != nil {
				return nil, p.fail(p.peek(), ErrScan.Wrap(err))
			}

			s += next
			p.pos++
		}

		return s, nil

	case tok.Kind == TokenNumber:
		p.pos++

		return parseNumber(tok.Text)

	case tok.Kind == TokenOp && (tok.Text == "-" || tok.Text == "+"):
		p.pos++

		v, err := p.parse()
		if err != nil {
			return nil, err
		}

		if tok.Text == "+" {
			return v, nil
		}

		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}

		return nil, p.fail(tok, ErrNonLiteralValue)

	case tok.Kind == TokenIdent:
		p.pos++

		switch tok.Text {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		}

		return nil, p.fail(tok, ErrNonLiteralValue)

	case tok.Kind == TokenOp && tok.Text == "[":
		items, err := p.parseItems("]")
		if err != nil {
			return nil, err
		}

		return List(items), nil

	case tok.Kind == TokenOp && tok.Text == "(":
		items, err := p.parseItems(")")
		if err != nil {
			return nil, err
		}

		return Tuple(items), nil

	case tok.Kind == TokenOp && tok.Text == "{":
		return p.parseBraced()
	}

	return nil, p.fail(tok, ErrNonLiteralValue)
}

// parseItems consumes the elements of a bracketed sequence after its
// opening token, through the matching close token.
func (p *literalParser) parseItems(close string) ([]any, error) {
	open := p.tokens[p.pos]
	p.pos++

	items := []any{}

	for {
		if p.done() {
			return nil, p.fail(open, ErrScan.Wrap(NewError("unterminated literal")))
		}

		if tok := p.peek(); tok.Kind == TokenOp && tok.Text == close {
			p.pos++

			return items, nil
		}

		v, err := p.parse()
		if err != nil {
			return nil, err
		}

		items = append(items, v)

		if tok := p.peek(); tok.Kind == TokenOp && tok.Text == "," {
			p.pos++
		} else if !(tok.Kind == TokenOp && tok.Text == close) {
			return nil, p.fail(tok, ErrNonLiteralValue)
		}
	}
}

// parseBraced distinguishes dict from set literals by the ':' after the
// first element.
func (p *literalParser) parseBraced() (any, error) {
	open := p.tokens[p.pos]
	p.pos++

	if tok := p.peek(); tok.Kind == TokenOp && tok.Text == "}" {
		p.pos++

		return Dict{}, nil
	}

	var (
		dict  Dict
		set   Set
		isSet bool
		first = true
	)

	for {
		if p.done() {
			return nil, p.fail(open, ErrScan.Wrap(NewError("unterminated literal")))
		}

		v, err := p.parse()
		if err != nil {
			return nil, err
		}

		tok := p.peek()

		if first {
			isSet = !(tok.Kind == TokenOp && tok.Text == ":")
			first = false
		}

		if isSet {
			set = append(set, v)
		} else {
			if !(tok.Kind == TokenOp && tok.Text == ":") {
				return nil, p.fail(tok, ErrNonLiteralValue)
			}

			p.pos++

			val, err := p.parse()
			if err != nil {
				return nil, err
			}

			dict = append(dict, DictEntry{Key: v, Val: val})
		}

		tok = p.peek()
		switch {
		case tok.Kind == TokenOp && tok.Text == ",":
			p.pos++
		case tok.Kind == TokenOp && tok.Text == "}":
			p.pos++

			if isSet {
				return set, nil
			}

			return dict, nil
		default:
			return nil, p.fail(tok, ErrNonLiteralValue)
		}
	}
}

func parseNumber(text string) (any, error) {
	s := strings.ReplaceAll(text, "_", "")

	if len(s) > 1 && s[0] == '0' &&
		strings.ContainsRune("xXoObB", rune(s[1])) {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, ErrScan.Wrap(err)
		}

		return n, nil
	}

	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, ErrScan.Wrap(err)
		}

		return f, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, ErrScan.Wrap(err)
	}

	return n, nil
}

// unquotePython decodes a Python string literal, including prefix letters
// and triple quotes.
func unquotePython(text string) (string, error) {
	raw := false

	for len(text) > 0 && text[0] != '\'' && text[0] != '"' {
		if text[0] == 'r' || text[0] == 'R' {
			raw = true
		}

		text = text[1:]
	}

	if len(text) < 2 {
		return "", NewError("malformed string literal")
	}

	quote := text[0]

	if len(text) >= 6 && text[1] == quote && text[2] == quote {
		text = text[3 : len(text)-3]
	} else {
		text = text[1 : len(text)-1]
	}

	if raw {
		return text, nil
	}

	var buf strings.Builder

	for i := 0; i < len(text); i++ {
		c := text[i]

		if c != '\\' || i+1 >= len(text) {
			buf.WriteByte(c)

			continue
		}

		i++

		switch text[i] {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case '\\':
			buf.WriteByte('\\')
		case '\'':
			buf.WriteByte('\'')
		case '"':
			buf.WriteByte('"')
		case '0':
			buf.WriteByte(0)
		case '\n':
			// Escaped newline joins lines.
		default:
			buf.WriteByte('\\')
			buf.WriteByte(text[i])
		}
	}

	return buf.String(), nil
}

func tokenPosition(file string, tok Token) Position {
	return Position{File: file, Offset: tok.Start, Line: tok.Line, Column: tok.Col}
}

func scanErrorAt(file string, src []byte, tok Token, err error) error {
	return &ScanError{
		Err:    err,
		Pos:    tokenPosition(file, tok),
		Source: string(src),
	}
}

func markerLogAttrs(m marker) []any {
	return []any{
		slog.String("marker", m.Kind.String()),
		slog.String("binding", m.Binding),
		slog.String("pos", m.Pos.String()),
	}
}
