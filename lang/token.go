package lang

import (
	"log/slog"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

// Token kinds produced by the tokenizer.
const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenOp
)

// String returns the lowercase name of the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "ident"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenOp:
		return "op"
	}

	return "unknown"
}

// Token is a lexical token with its location in the source.
//
// Stmt numbers the logical statement containing the token. A logical
// statement ends at a newline or semicolon outside of brackets; newlines
// inside brackets or escaped with a backslash do not terminate it.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int // Byte offset of first byte
	End   int // Byte offset one past last byte
	Line  int // 1-based line of Start
	Col   int // 1-based column of Start
	Stmt  int // Logical statement index, 0-based
	Depth int // Bracket nesting depth at Start
}

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", t.Kind.String()),
		slog.String("text", t.Text),
		slog.Int("line", t.Line),
		slog.Int("col", t.Col),
	)
}

// tokenizer splits Python source into the token stream the marker scanner
// walks. It understands just enough of the lexical grammar to keep marker
// call spans and statement boundaries exact: strings with prefixes and
// triple quotes, comments, bracket nesting, and line continuations. It does
// not parse.
type tokenizer struct {
	input []byte
	pos   int
	line  int
	col   int
	depth int
	stmt  int
}

// operators lexed as a single token, longest first per leading byte.
// Grouping '==' and friends keeps a lone '=' unambiguous for the scanner.
var multiOps = []string{
	"**=", "//=", ">>=", "<<=",
	"==", "!=", "<=", ">=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"**", "//", ">>", "<<",
}

func newTokenizer(input []byte) *tokenizer {
	return &tokenizer{input: input, line: 1, col: 1}
}

func (t *tokenizer) eof() bool { return t.pos >= len(t.input) }

func (t *tokenizer) peek() byte {
	if t.eof() {
		return 0
	}

	return t.input[t.pos]
}

func (t *tokenizer) peekAt(n int) byte {
	if t.pos+n >= len(t.input) {
		return 0
	}

	return t.input[t.pos+n]
}

func (t *tokenizer) advance() byte {
	c := t.input[t.pos]
	t.pos++

	if c == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}

	return c
}

func (t *tokenizer) position() Position {
	return Position{Offset: t.pos, Line: t.line, Column: t.col}
}

// tokenize scans the entire input. The returned error wraps [ErrScan].
func (t *tokenizer) tokenize() ([]Token, error) {
	var tokens []Token

	for !t.eof() {
		c := t.peek()

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			t.advance()

		case c == '\\' && t.peekAt(1) == '\n':
			// Explicit line continuation: the newline does not end
			// the statement.
			t.advance()
			t.advance()

		case c == '\n':
			t.advance()

			if t.depth == 0 {
				t.stmt++
			}

		case c == '#':
			for !t.eof() && t.peek() != '\n' {
				t.advance()
			}

		case c == '\'' || c == '"':
			tok, err := t.scanString(t.pos)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, tok)

		case isIdentStart(c):
			tok, err := t.scanIdentOrString()
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, tok)

		case c >= '0' && c <= '9',
			c == '.' && t.peekAt(1) >= '0' && t.peekAt(1) <= '9':
			tokens = append(tokens, t.scanNumber())

		default:
			tokens = append(tokens, t.scanOp())
		}
	}

	return tokens, nil
}

func (t *tokenizer) token(kind TokenKind, start, line, col int) Token {
	return Token{
		Kind:  kind,
		Text:  string(t.input[start:t.pos]),
		Start: start,
		End:   t.pos,
		Line:  line,
		Col:   col,
		Stmt:  t.stmt,
		Depth: t.depth,
	}
}

// scanIdentOrString scans an identifier, promoting it to a string token when
// it is a recognized prefix (r, b, f, u, or a pair of them) immediately
// followed by a quote.
func (t *tokenizer) scanIdentOrString() (Token, error) {
	start, line, col := t.pos, t.line, t.col

	for !t.eof() && isIdentPart(t.peek()) {
		t.advance()
	}

	text := string(t.input[start:t.pos])

	if len(text) <= 2 && isStringPrefix(text) {
		if c := t.peek(); c == '\'' || c == '"' {
			tok, err := t.scanString(start)
			if err != nil {
				return Token{}, err
			}

			tok.Line, tok.Col = line, col

			return tok, nil
		}
	}

	return t.token(TokenIdent, start, line, col), nil
}

func isStringPrefix(s string) bool {
	for _, c := range strings.ToLower(s) {
		if !strings.ContainsRune("rbfu", c) {
			return false
		}
	}

	return len(s) > 0
}

// scanString consumes a quoted literal starting at the current quote byte.
// start may precede t.pos when a prefix was already consumed.
func (t *tokenizer) scanString(start int) (Token, error) {
	line, col := t.line, t.col
	quote := t.advance()

	triple := false
	if t.peek() == quote && t.peekAt(1) == quote {
		t.advance()
		t.advance()

		triple = true
	}

	for !t.eof() {
		c := t.peek()

		switch {
		case c == '\\':
			t.advance()

			if !t.eof() {
				t.advance()
			}

		case c == quote:
			t.advance()

			if !triple {
				return t.token(TokenString, start, line, col), nil
			}

			if t.peek() == quote && t.peekAt(1) == quote {
				t.advance()
				t.advance()

				return t.token(TokenString, start, line, col), nil
			}

		case c == '\n' && !triple:
			return Token{}, &ScanError{
				Err:    ErrScan.Wrap(NewError("unterminated string literal")),
				Pos:    Position{Offset: start, Line: line, Column: col},
				Source: string(t.input),
			}

		default:
			t.advance()
		}
	}

	return Token{}, &ScanError{
		Err:    ErrScan.Wrap(NewError("unterminated string literal")),
		Pos:    Position{Offset: start, Line: line, Column: col},
		Source: string(t.input),
	}
}

func (t *tokenizer) scanNumber() Token {
	start, line, col := t.pos, t.line, t.col

	for !t.eof() {
		c := t.peek()

		switch {
		case c >= '0' && c <= '9', c == '_', c == '.', isIdentStart(c):
			// Letters cover hex digits and the 0x/0o/0b/e/j markers.
			t.advance()

		case (c == '+' || c == '-') && t.pos > start &&
			(t.input[t.pos-1] == 'e' || t.input[t.pos-1] == 'E'):
			t.advance()

		default:
			return t.token(TokenNumber, start, line, col)
		}
	}

	return t.token(TokenNumber, start, line, col)
}

func (t *tokenizer) scanOp() Token {
	start, line, col := t.pos, t.line, t.col
	c := t.peek()

	rest := string(t.input[t.pos:min(t.pos+3, len(t.input))])
	for _, op := range multiOps {
		if strings.HasPrefix(rest, op) {
			for i := 0; i < len(op); i++ {
				t.advance()
			}

			return t.token(TokenOp, start, line, col)
		}
	}

	t.advance()

	tok := t.token(TokenOp, start, line, col)

	// Depth recorded on the token is the depth outside the bracket, so a
	// closing bracket pairs with its opener.
	switch c {
	case '(', '[', '{':
		t.depth++
	case ')', ']', '}':
		if t.depth > 0 {
			t.depth--
			tok.Depth = t.depth
		}
	case ';':
		if t.depth == 0 {
			t.stmt++
			tok.Stmt = t.stmt - 1
		}
	}

	return tok
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
