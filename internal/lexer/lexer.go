// Package lexer turns C and C++ source text into a lossless token stream.
//
// Every byte of the input belongs to exactly one token, so concatenating
// token texts in order reproduces the source. Malformed input never stops
// the lexer: unterminated literals and comments become best-effort tokens
// and are reported as lexical anomalies.
package lexer

import (
	"iter"
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
)

// Lexer produces tokens on demand. It is not safe for concurrent use.
type Lexer struct {
	src     string
	dialect Dialect

	pos       int
	line      int
	col       int
	lineStart bool // only whitespace seen since the last newline

	anomalies anomaly.List
}

// New returns a lexer positioned at the start of src.
func New(src string, dialect Dialect) *Lexer {
	return &Lexer{src: src, dialect: dialect, line: 1, col: 1, lineStart: true}
}

// Anomalies returns the lexical anomalies seen so far.
func (l *Lexer) Anomalies() []anomaly.Anomaly {
	return l.anomalies.Sorted()
}

// Next returns the next token. After the input is exhausted it returns an
// EOF token (empty text) on every call.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Offset: l.pos, End: l.pos, Line: l.line, Column: l.col}
	}
	start, line, col := l.pos, l.line, l.col
	kind, lit := l.scan()
	tok := Token{
		Kind:    kind,
		Literal: lit,
		Text:    l.src[start:l.pos],
		Offset:  start,
		End:     l.pos,
		Line:    line,
		Column:  col,
	}
	l.advancePosition(tok.Text)
	switch kind {
	case Newline:
		l.lineStart = true
	case Whitespace, Comment:
	default:
		l.lineStart = false
	}
	return tok
}

// Scan returns a restartable iterator over all tokens of src, excluding EOF.
// Each iteration runs a fresh lexer, so anomalies are discarded; use New
// when they are needed.
func Scan(src string, dialect Dialect) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		l := New(src, dialect)
		for {
			t := l.Next()
			if t.Kind == EOF || !yield(t) {
				return
			}
		}
	}
}

// Tokenize lexes the whole input and returns the tokens (without EOF) and
// the lexical anomalies.
func Tokenize(src string, dialect Dialect) ([]Token, []anomaly.Anomaly) {
	l := New(src, dialect)
	toks := make([]Token, 0, len(src)/4+1)
	for {
		t := l.Next()
		if t.Kind == EOF {
			break
		}
		toks = append(toks, t)
	}
	return toks, l.Anomalies()
}

func (l *Lexer) advancePosition(text string) {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			l.line++
			l.col = 1
			continue
		}
		if text[i] == '\r' {
			// a lone '\r' ends a line; in "\r\n" the '\n' does
			next := l.peek(0)
			if i+1 < len(text) {
				next = text[i+1]
			}
			if next != '\n' {
				l.line++
				l.col = 1
			}
			continue
		}
		// count runes, not bytes, for columns
		if text[i]&0xC0 != 0x80 {
			l.col++
		}
	}
}

func (l *Lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *Lexer) scan() (Kind, LiteralKind) {
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.pos++
		return Newline, NotLiteral
	case c == '\r':
		l.pos++
		if l.peek(0) == '\n' {
			l.pos++
		}
		return Newline, NotLiteral
	case c == ' ' || c == '\t' || c == '\f' || c == '\v':
		for l.pos < len(l.src) {
			b := l.src[l.pos]
			if b != ' ' && b != '\t' && b != '\f' && b != '\v' {
				break
			}
			l.pos++
		}
		return Whitespace, NotLiteral
	case c == '\\' && (l.peek(1) == '\n' || l.peek(1) == '\r'):
		// line splice outside a directive
		l.splice()
		return Whitespace, NotLiteral
	case c == '/' && l.peek(1) == '/':
		l.lineComment()
		return Comment, NotLiteral
	case c == '/' && l.peek(1) == '*':
		l.blockComment()
		return Comment, NotLiteral
	case c == '#' && l.lineStart:
		l.directive()
		return Preprocessor, NotLiteral
	case c == '"':
		l.quoted('"', l.pos, true)
		return Literal, String
	case c == '\'':
		l.quoted('\'', l.pos, true)
		return Literal, Char
	case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
		l.number()
		return Literal, Number
	case isIdentByte(c):
		return l.identOrPrefixedLiteral()
	case c >= 0x80:
		// UTF-8 identifiers are accepted as identifier characters
		l.identifierBytes()
		return Identifier, NotLiteral
	case isPunctuationByte(c):
		if c == ':' && l.dialect == CPP && l.peek(1) == ':' {
			l.pos += 2
			return Operator, NotLiteral
		}
		l.pos++
		return Punctuation, NotLiteral
	case isOperatorByte(c):
		l.operator()
		return Operator, NotLiteral
	}
	l.pos++
	return Unknown, NotLiteral
}

func (l *Lexer) identifierBytes() {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		if !isIdentByte(b) && b < 0x80 {
			break
		}
		l.pos++
	}
}

func (l *Lexer) identOrPrefixedLiteral() (Kind, LiteralKind) {
	start := l.pos
	l.identifierBytes()
	word := l.src[start:l.pos]
	next := l.peek(0)
	if next == '"' || next == '\'' {
		switch word {
		case "L", "u", "U", "u8":
			if next == '"' {
				l.quoted('"', start, true)
				return Literal, String
			}
			l.quoted('\'', start, true)
			return Literal, Char
		case "R", "LR", "uR", "UR", "u8R":
			if next == '"' && l.rawString(start) {
				return Literal, String
			}
		}
	}
	if IsKeyword(l.dialect, word) {
		return Keyword, NotLiteral
	}
	return Identifier, NotLiteral
}

func (l *Lexer) lineComment() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.splice() {
			continue
		}
		if c == '\n' || c == '\r' {
			return
		}
		l.pos++
	}
}

// splice consumes a backslash-newline at pos and reports whether it did.
func (l *Lexer) splice() bool {
	if l.peek(1) == '\n' {
		l.pos += 2
		return true
	}
	if l.peek(1) == '\r' {
		l.pos += 2
		if l.peek(0) == '\n' {
			l.pos++
		}
		return true
	}
	return false
}

func (l *Lexer) blockComment() {
	line, col := l.line, l.col
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		l.pos = len(l.src)
		l.anomalies.Add(anomaly.Lexical, line, col, "unterminated block comment")
		return
	}
	l.pos += 2 + end + 2
}

// directive consumes a preprocessor line including continuation lines.
// Comments and literals inside the directive are part of its text.
func (l *Lexer) directive() {
	line, col := l.line, l.col
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.splice():
		case c == '\n' || c == '\r':
			return
		case c == '/' && l.peek(1) == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				l.anomalies.Add(anomaly.Lexical, line, col, "unterminated block comment in directive")
				return
			}
			l.pos += 2 + end + 2
		case c == '/' && l.peek(1) == '/':
			l.lineComment()
			return
		case c == '"' || c == '\'':
			// #error and #warning text may hold a lone apostrophe
			l.quoted(c, l.pos, false)
		default:
			l.pos++
		}
	}
}

// quoted consumes a string or character literal whose opening quote is at
// l.pos. An unterminated literal ends before the newline and is reported
// when report is set.
func (l *Lexer) quoted(quote byte, start int, report bool) {
	line, col := l.line, l.col+(l.pos-start)
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			if l.splice() {
				continue
			}
			l.pos++
			if l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == quote:
			l.pos++
			return
		case c == '\n' || c == '\r':
			if report {
				l.unterminated(quote, line, col)
			}
			return
		default:
			l.pos++
		}
	}
	if report {
		l.unterminated(quote, line, col)
	}
}

func (l *Lexer) unterminated(quote byte, line, col int) {
	what := "string"
	if quote == '\'' {
		what = "character"
	}
	l.anomalies.Addf(anomaly.Lexical, line, col, "unterminated %s literal", what)
}

// rawString consumes R"delim( ... )delim". The prefix starts at start and
// l.pos is at the opening quote. It returns false when the delimiter is
// malformed, leaving l.pos untouched.
func (l *Lexer) rawString(start int) bool {
	open := strings.IndexByte(l.src[l.pos+1:], '(')
	if open < 0 || open > 16 {
		return false
	}
	delim := l.src[l.pos+1 : l.pos+1+open]
	if strings.ContainsAny(delim, " \\)\t\n\"") {
		return false
	}
	line, col := l.line, l.col+(l.pos-start)
	body := l.pos + 1 + open + 1
	closing := ")" + delim + "\""
	end := strings.Index(l.src[body:], closing)
	if end < 0 {
		l.pos = len(l.src)
		l.anomalies.Add(anomaly.Lexical, line, col, "unterminated raw string literal")
		return true
	}
	l.pos = body + end + len(closing)
	return true
}

// number consumes a preprocessing number: digits, letters, '.', digit
// separators and signed exponents.
func (l *Lexer) number() {
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isIdentByte(c) || c == '.':
			l.pos++
			if (c == 'e' || c == 'E' || c == 'p' || c == 'P') && (l.peek(0) == '+' || l.peek(0) == '-') {
				l.pos++
			}
		case c == '\'' && isIdentByte(l.peek(1)):
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) operator() {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		if l.dialect == C && cppOnlyOperators[op] {
			continue
		}
		l.pos += len(op)
		return
	}
	l.pos++
}
