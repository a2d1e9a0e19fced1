package region

import (
	"strings"
	"unicode"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// statementKeywords never start a declaration and never precede a declared name.
var statementKeywords = wordSet(`return throw delete new goto case default sizeof else do
co_return co_yield co_await typeid alignof and or not break continue using namespace
typedef template static_assert _Static_assert asm this true false nullptr operator
if for while switch try catch`)

// specifiers may precede a class/struct/union/enum keyword in a declaration.
var specifiers = wordSet(`static const volatile extern export constexpr inline mutable
thread_local _Thread_local register __extension__`)

// tailWords may follow the parameter list of a function declarator.
var tailWords = wordSet(`const volatile & && override final mutable constexpr
__restrict __restrict__ restrict`)

// forceFunction specifiers mark a parenthesized declarator as a function.
var forceFunction = wordSet(`void virtual inline explicit friend __inline __inline__`)

var typeArgKeywords = wordSet(`const volatile struct class union enum typename unsigned
signed register auto`)

var controlKeywords = wordSet(`if for while switch do else try catch`)

var accessKeywords = wordSet(`public private protected`)

var asmWords = wordSet(`asm __asm __asm__ _asm`)

func wordSet(s string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		m[w] = true
	}
	return m
}

// IsConstantName reports whether name follows the all-caps constant
// convention: only upper-case letters, digits and underscores, with at
// least one letter.
func IsConstantName(name string) bool {
	letter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return letter
}

// IsMacroName reports whether an identifier looks like a macro: an
// all-caps name longer than three characters.
func IsMacroName(name string) bool {
	return len(name) > 3 && IsConstantName(name)
}

// isCamelCase reports an upper-case first letter followed by at least one
// lower-case letter, the usual shape of a type name.
func isCamelCase(name string) bool {
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return false
	}
	return strings.IndexFunc(name, unicode.IsLower) >= 0
}

// typeish reports whether sig token i can end a type, so that an
// identifier after it is a declared name.
func (m *matcher) typeish(i int) bool {
	switch m.kind(i) {
	case lexer.Identifier:
		return true
	case lexer.Keyword:
		return !statementKeywords[m.text(i)]
	}
	switch m.text(i) {
	case "*", "&", "&&", ">", ">>":
		return true
	}
	return false
}

// splitArgs splits the sig range (open, close) at top-level commas.
func (m *matcher) splitArgs(open, close int) [][2]int {
	var out [][2]int
	if close <= open+1 {
		return nil
	}
	start := open + 1
	for i := open + 1; i < close; i++ {
		switch m.text(i) {
		case "(", "[", "{":
			c, _ := m.matchGroup(i)
			i = c
		case "<":
			if m.ident(i - 1) {
				if c, ok := m.matchAngle(i); ok && c < close {
					i = c
				}
			}
		case ",":
			out = append(out, [2]int{start, i})
			start = i + 1
		}
	}
	return append(out, [2]int{start, close})
}

// argIsType decides whether a parenthesized argument looks like a
// parameter declaration rather than a value. sure is false when the
// answer rests only on the spelling of a single identifier.
func (m *matcher) argIsType(a, b int) (isType, sure bool) {
	if b <= a {
		return false, true
	}
	for i := a; i < b; i++ {
		s := m.text(i)
		if m.kind(i) == lexer.Keyword && (lexer.IsPrimitiveType(s) || typeArgKeywords[s]) {
			return true, true
		}
		if s == "..." {
			return true, true
		}
		if i+1 < b && m.ident(i+1) && (m.ident(i) || s == ">") {
			return true, true
		}
	}
	switch m.text(b - 1) {
	case "*", "&", "&&":
		return true, true
	}
	// a lone (possibly qualified) name is a type when it is spelled like one
	for i := a; i < b; i++ {
		if (i-a)%2 == 0 && !m.ident(i) {
			return false, true
		}
		if (i-a)%2 == 1 && !m.is(i, "::") {
			return false, true
		}
	}
	if (b-a)%2 == 0 {
		return false, true
	}
	return isCamelCase(m.text(b - 1)), false
}

// classifyParen decides whether "prefix name(args);" at namespace scope is a
// function declaration or an object initialized with constructor syntax.
// It returns the region kind and sub-type and whether a heuristic decided.
func (m *matcher) classifyParen(start, nameIdx, paren, close int, name string) (Kind, string, bool) {
	for i := start; i < nameIdx; i++ {
		if forceFunction[m.text(i)] {
			return FunctionDeclaration, "", false
		}
	}
	args := m.splitArgs(paren, close)
	if len(args) == 0 {
		return FunctionDeclaration, "", false
	}
	for _, a := range args {
		if isType, sure := m.argIsType(a[0], a[1]); isType {
			return FunctionDeclaration, "", !sure
		}
	}
	if IsConstantName(name) {
		return Statement, SubConstant, true
	}
	return Statement, SubVariable, true
}

// operatorName reads the name following the "operator" keyword at i. It
// returns the name, the sig index after it and whether it is a conversion
// operator.
func (m *matcher) operatorName(i int) (string, int, bool) {
	j := i + 1
	switch {
	case m.is(j, "(") && m.is(j+1, ")"):
		return "operator()", j + 2, false
	case m.is(j, "[") && m.is(j+1, "]"):
		return "operator[]", j + 2, false
	case m.is(j, "new") || m.is(j, "delete"):
		if m.is(j+1, "[") && m.is(j+2, "]") {
			return "operator " + m.text(j) + "[]", j + 3, false
		}
		return "operator " + m.text(j), j + 1, false
	case m.kind(j) == lexer.Literal && m.tok(j).Literal == lexer.String:
		if m.ident(j + 1) {
			return "operator\"\"" + m.text(j+1), j + 2, false
		}
		return "operator\"\"", j + 1, false
	case m.kind(j) == lexer.Operator || m.is(j, ","):
		return "operator" + m.text(j), j + 1, false
	}
	var b strings.Builder
	b.WriteString("operator")
	for ; j < len(m.sig) && !m.is(j, "(") && !m.is(j, ";") && !m.is(j, "{"); j++ {
		s := m.text(j)
		if s != "*" && s != "&" && s != "&&" && s != "::" && !strings.HasSuffix(b.String(), "::") {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String(), j, true
}

// pointerGroup returns the sig index of the name inside a declarator group
// such as "(*name)" or "(Class::*name)" opened at i, or -1.
func (m *matcher) pointerGroup(i int) int {
	if !m.is(i, "(") {
		return -1
	}
	j := i + 1
	for m.ident(j) && m.is(j+1, "::") {
		j += 2
	}
	if !m.is(j, "*") && !m.is(j, "&") && !m.is(j, "^") {
		return -1
	}
	for m.is(j, "*") || m.is(j, "&") || m.is(j, "^") || m.is(j, "const") || m.is(j, "volatile") {
		j++
	}
	if m.ident(j) && (m.is(j+1, ")") || m.is(j+1, "[")) {
		return j
	}
	return -1
}

// declaredName reports whether the identifier at k is declared by the
// statement starting at from. cont is set after a first declarator so that
// the names after top-level commas count as well.
func (m *matcher) declaredName(k, from int, cont bool) bool {
	if k < from || !m.ident(k) {
		return false
	}
	j := k - 1
	for j >= from && (m.is(j, "*") || m.is(j, "&") || m.is(j, "&&") || m.is(j, "const") || m.is(j, "volatile")) {
		j--
	}
	if cont && (j < from || m.is(j, ",")) {
		return true
	}
	if j < from {
		return false
	}
	if m.is(j, "::") {
		// qualified definition such as "int A::b = 1;"
		for j >= from+1 && m.is(j, "::") && m.ident(j-1) {
			j -= 2
		}
		return j >= from && m.typeish(j) && !m.is(j, "::")
	}
	return m.typeish(j)
}

// declarators returns the token indices of the names declared by the
// statement in sig range [from, to): names before ',', '=', ';', '(', '[',
// '{' or ':' at bracket depth zero whose preceding token ends a type, and
// the names of a structured binding.
func (m *matcher) declarators(from, to int, cont bool) []int {
	if from >= to {
		return nil
	}
	if !cont {
		switch m.kind(from) {
		case lexer.Identifier:
		case lexer.Keyword:
			if statementKeywords[m.text(from)] {
				return nil
			}
		default:
			if !m.is(from, "::") {
				return nil
			}
		}
	}
	var out []int
	last := -1
	take := func(k int) {
		if k != last && m.declaredName(k, from, cont) {
			out = append(out, m.sig[k])
			last = k
			cont = true
		}
	}
	for i := from; i < to; {
		s := m.text(i)
		switch s {
		case "(":
			if name := m.pointerGroup(i); name >= 0 && i > from && (cont || m.typeish(i-1)) {
				out = append(out, m.sig[name])
				last = name
				cont = true
				c, _ := m.matchGroup(i)
				i = c + 1
				if m.is(i, "(") {
					c, _ = m.matchGroup(i)
					i = c + 1
				}
				continue
			}
			take(i - 1)
			c, _ := m.matchGroup(i)
			i = c + 1
		case "[", "{":
			if names := m.bindings(i, from); len(names) > 0 {
				out = append(out, names...)
				cont = true
				c, _ := m.matchGroup(i)
				i = c + 1
				continue
			}
			take(i - 1)
			c, _ := m.matchGroup(i)
			i = c + 1
		case "<":
			if m.ident(i - 1) {
				if c, ok := m.matchAngle(i); ok && c < to {
					i = c + 1
					continue
				}
			}
			i++
		case ",", ";":
			take(i - 1)
			if !cont {
				return nil
			}
			i++
		case "=", ":":
			take(i - 1)
			if !cont {
				return nil
			}
			i = m.skipInitializer(i+1, to)
		default:
			i++
		}
	}
	take(to - 1)
	return out
}

// bindings returns the token indices of a structured binding list
// "auto [a, b]" opened at sig index open, or nil.
func (m *matcher) bindings(open, from int) []int {
	if !m.cpp || !m.is(open, "[") {
		return nil
	}
	j := open - 1
	for j >= from && (m.is(j, "&") || m.is(j, "&&")) {
		j--
	}
	if j < from || !m.is(j, "auto") {
		return nil
	}
	c, ok := m.matchGroup(open)
	if !ok {
		return nil
	}
	var names []int
	for k := open + 1; k < c; k += 2 {
		if !m.ident(k) || (k+1 < c && !m.is(k+1, ",")) {
			return nil
		}
		names = append(names, m.sig[k])
	}
	return names
}

// skipInitializer advances from i to the next top-level ',' or ';' before to.
func (m *matcher) skipInitializer(i, to int) int {
	for i < to {
		switch m.text(i) {
		case ",", ";":
			return i
		case "(", "[", "{":
			c, _ := m.matchGroup(i)
			i = c + 1
		case "<":
			if m.ident(i - 1) {
				if c, ok := m.matchAngle(i); ok && c < to {
					i = c + 1
					continue
				}
			}
			i++
		default:
			i++
		}
	}
	return to
}
