package lexer

import (
	"fmt"
	"strings"
)

// Kind is the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Keyword
	Literal
	Operator
	Punctuation
	Comment
	Preprocessor
	Whitespace
	Newline
	// Unknown holds bytes that fit no other class (stray backslashes,
	// '@', '`', control characters). They are kept so tokenization stays lossless.
	Unknown
)

var kindNames = [...]string{
	EOF:          "EOF",
	Identifier:   "Identifier",
	Keyword:      "Keyword",
	Literal:      "Literal",
	Operator:     "Operator",
	Punctuation:  "Punctuation",
	Comment:      "Comment",
	Preprocessor: "Preprocessor",
	Whitespace:   "Whitespace",
	Newline:      "Newline",
	Unknown:      "Unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Trivia reports whether tokens of this kind carry no structure.
func (k Kind) Trivia() bool {
	return k == Whitespace || k == Newline || k == Comment
}

// LiteralKind refines Literal tokens.
type LiteralKind int

const (
	NotLiteral LiteralKind = iota
	Number
	String
	Char
)

// Token is an immutable lexical token. Offset and End are byte offsets into
// the source, Line and Column are 1-based and refer to Offset.
type Token struct {
	Kind    Kind
	Literal LiteralKind
	Text    string
	Offset  int
	End     int
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%d %s %q", t.Line, t.Column, t.Kind, t.Text)
}

// Is reports whether the token is a structural token (not trivia) with the given text.
func (t Token) Is(text string) bool {
	return t.Text == text && !t.Kind.Trivia() && t.Kind != Preprocessor
}

// IsIdent reports whether the token is an identifier.
func (t Token) IsIdent() bool {
	return t.Kind == Identifier
}

// DirectiveName returns the directive word of a preprocessor token
// ("include", "define", "ifdef", ...) or "" for other tokens and null directives.
func (t Token) DirectiveName() string {
	if t.Kind != Preprocessor {
		return ""
	}
	s := strings.TrimLeft(t.Text[1:], " \t")
	// "# /* c */ define" is legal but rare; only skip plain block comments.
	for strings.HasPrefix(s, "/*") {
		end := strings.Index(s, "*/")
		if end < 0 {
			return ""
		}
		s = strings.TrimLeft(s[end+2:], " \t")
	}
	n := 0
	for n < len(s) && isIdentByte(s[n]) {
		n++
	}
	return s[:n]
}

// Dialect selects the lexical rules of the C family.
type Dialect int

const (
	C Dialect = iota
	CPP
)

func (d Dialect) String() string {
	if d == CPP {
		return "cpp"
	}
	return "c"
}

// ParseDialect maps "c" and "cpp"/"c++" to a Dialect.
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c":
		return C, true
	case "cpp", "c++", "cxx":
		return CPP, true
	}
	return C, false
}

var cKeywords = words(`auto break case char const continue default do double else enum
extern float for goto if inline int long register restrict return short signed sizeof
static struct switch typedef union unsigned void volatile while _Alignas _Alignof _Atomic
_Bool _Complex _Generic _Imaginary _Noreturn _Static_assert _Thread_local`)

var cppKeywords = words(`alignas alignof and and_eq asm auto bitand bitor bool break case
catch char char8_t char16_t char32_t class compl concept const consteval constexpr constinit
const_cast continue co_await co_return co_yield decltype default delete do double
dynamic_cast else enum explicit export extern false float for friend goto if inline int long
mutable namespace new noexcept not not_eq nullptr operator or or_eq private protected public
register reinterpret_cast requires return short signed sizeof static static_assert
static_cast struct switch template this thread_local throw true try typedef typeid typename
union unsigned using virtual void volatile wchar_t while xor xor_eq`)

var primitiveTypes = words(`void char short int long float double signed unsigned bool
wchar_t char8_t char16_t char32_t _Bool _Complex`)

func words(s string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		m[w] = true
	}
	return m
}

// IsKeyword reports whether word is reserved in the dialect.
func IsKeyword(d Dialect, word string) bool {
	if d == CPP {
		return cppKeywords[word]
	}
	return cKeywords[word]
}

// IsPrimitiveType reports whether word names a built-in arithmetic or void type.
func IsPrimitiveType(word string) bool {
	return primitiveTypes[word]
}

// operators lists multi-character operators, longest first within each
// leading byte so a linear scan finds the longest match.
var operators = []string{
	"<<=", ">>=", "...", "->*", "<=>",
	"::", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ".*", "##",
}

// cppOnlyOperators are split into single characters in C.
var cppOnlyOperators = map[string]bool{"::": true, "->*": true, "<=>": true, ".*": true}

func isPunctuationByte(c byte) bool {
	switch c {
	case '{', '}', '(', ')', '[', ']', ';', ',', ':':
		return true
	}
	return false
}

func isOperatorByte(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '&', '|', '^', '~', '!', '=', '<', '>', '?', '.', '#':
		return true
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
