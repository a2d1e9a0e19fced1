package region

import (
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

type endReason int

const (
	endSemicolon  endReason = iota
	endMacro                // a macro call without ';' on its own line
	endBrace                // stopped before a '{' that opens a block
	endClose                // stopped before the '}' of the enclosing body
	endEOF                  // input ended
	endUnbalanced           // a bracket was left open
)

// scanStatement finds the end of the statement starting at sig index from.
// It returns the exclusive end index and how the statement ended.
func (m *matcher) scanStatement(from int) (int, endReason) {
	var stack []int
	for i := from; i < m.n(); i++ {
		s := m.text(i)
		if len(stack) == 0 {
			switch s {
			case ";":
				return i + 1, endSemicolon
			case "}":
				return i, endClose
			case "{":
				if !m.braceInStatement(from, i) {
					return i, endBrace
				}
			}
		}
		switch s {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]":
			if len(stack) == 0 || m.text(stack[len(stack)-1]) != closers[s] {
				continue
			}
			opener := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 && s == ")" && opener == from+1 && m.macroCallEnds(from, i) {
				return i + 1, endMacro
			}
		case "}":
			if m.text(stack[len(stack)-1]) != "{" {
				return i, endUnbalanced
			}
			stack = stack[:len(stack)-1]
		case ";":
			if m.text(stack[len(stack)-1]) != "{" {
				// a ';' inside parentheses: the ')' is missing
				return i + 1, endUnbalanced
			}
		}
	}
	if len(stack) > 0 {
		return m.n(), endUnbalanced
	}
	return m.n(), endEOF
}

// braceInStatement decides whether a '{' at bracket depth zero belongs to
// the statement that started at from (an initializer or a lambda body)
// rather than opening a block after it.
func (m *matcher) braceInStatement(from, i int) bool {
	if i == from {
		return false
	}
	prev := m.text(i - 1)
	switch prev {
	case "=", ",", "(", "[", "return", "?", ":", "]", "co_return", "co_yield":
		return true
	case ")", "mutable", "noexcept", "const":
		return m.hasLambda(from, i)
	}
	if (m.ident(i-1) || prev == ">") && i-1 > from {
		return true
	}
	return m.hasLambda(from, i) && (m.ident(i-1) || m.kind(i-1) == lexer.Keyword || prev == ">" || prev == "*" || prev == "&")
}

// hasLambda reports a lambda introducer "[" at depth zero in [from, to).
func (m *matcher) hasLambda(from, to int) bool {
	for i := from; i < to; i++ {
		switch m.text(i) {
		case "[":
			if i == from {
				return true
			}
			switch m.text(i - 1) {
			case "=", ",", "(", "return", "{", ";":
				return true
			}
			if m.kind(i-1) == lexer.Operator {
				return true
			}
		}
	}
	return false
}

// macroCallEnds reports whether "NAME(...)" ending at close is a complete
// statement although no ';' follows: the next token is a closing brace or
// starts a new line with a word.
func (m *matcher) macroCallEnds(from, close int) bool {
	if !m.ident(from) {
		return false
	}
	next := close + 1
	if next >= m.n() {
		return false
	}
	if m.is(next, "}") {
		return true
	}
	if !m.laterLine(close, next) {
		return false
	}
	if tailWords[m.text(next)] || m.is(next, "noexcept") || m.is(next, "throw") {
		return false
	}
	return m.ident(next) || m.kind(next) == lexer.Keyword
}

// statement reads one element of a function body.
func (m *matcher) statement(parent ID) {
	start := m.p
	s := m.text(start)
	switch {
	case s == ";":
		m.simple(parent, Statement, SubEmpty, start, start+1)
		return
	case s == "{":
		m.block(parent, start, start, inMethod, "")
		return
	case controlKeywords[s] && m.kind(start) == lexer.Keyword:
		m.control(parent, start)
		return
	case s == "case" || (s == "default" && m.is(start+1, ":")):
		m.caseLabel(parent, start)
		return
	case m.ident(start) && m.is(start+1, ":"):
		id := m.simple(parent, Meta, SubLabel, start, start+2)
		r := m.t.region(id)
		r.Name, r.NameToken = s, m.sig[start]
		return
	case m.bareMacro(start):
		id := m.simple(parent, Meta, SubMacroCall, start, start+1)
		r := m.t.region(id)
		r.Name, r.NameToken = s, m.sig[start]
		return
	case s == "typedef":
		m.typedef(parent, start, inMethod)
		return
	case s == "using":
		m.using(parent, start)
		return
	case s == "namespace":
		m.untilSemicolon(parent, Meta, SubNamespaceAlias, start)
		return
	case asmWords[s]:
		m.assembler(parent, start)
		return
	case s == "static_assert" || s == "_Static_assert":
		m.untilSemicolon(parent, Statement, SubStaticAssert, start)
		return
	}
	head := start
	for specifiers[m.text(head)] {
		head++
	}
	switch m.text(head) {
	case "class", "struct", "union", "enum":
		if m.typeRegion(parent, start, head, false) {
			return
		}
	}
	m.variable(parent, start)
}

func (m *matcher) caseLabel(parent ID, start int) {
	end := start + 1
	for end < m.n() && !m.is(end, ":") && !m.is(end, ";") && !m.is(end, "{") && !m.is(end, "}") {
		if m.is(end, "(") {
			c, _ := m.matchGroup(end)
			end = c
		}
		end++
	}
	if m.is(end, ":") {
		end++
	} else {
		m.structural(start, "case label without ':'")
	}
	m.simple(parent, Meta, SubCaseLabel, start, end)
}

// control reads if, else, for, while, switch, do, try and catch with their
// body: a block or a single statement.
func (m *matcher) control(parent ID, start int) {
	kw := m.text(start)
	sub := kw
	i := start + 1
	var params Span
	cond := func() {
		if !m.is(i, "(") {
			return
		}
		close, ok := m.matchGroup(i)
		params = m.inner(i, close)
		if !ok {
			m.structural(i, "unbalanced parenthesis after %s", kw)
		}
		i = close + 1
	}
	switch kw {
	case "else":
		if m.is(i, "if") {
			sub = "else if"
			i++
			if m.is(i, "constexpr") {
				i++
			}
			cond()
		}
	case "if":
		if m.is(i, "constexpr") {
			i++
		}
		cond()
	case "for", "while", "switch", "catch":
		cond()
	}
	id := m.open(parent, Region{
		Kind:      ControlStatement,
		Sub:       sub,
		NameToken: -1,
		Header:    m.span(start, i),
		Params:    params,
	}, start)
	m.t.region(id).Span = m.span(start, i)

	switch {
	case m.is(i, "{"):
		m.body(id, i, inMethod, "")
	case i < m.n() && !m.is(i, "}"):
		m.dropDirectives(m.sig[i-1])
		m.emitDirectives(id, m.sig[i])
		m.p = i
		m.statement(id)
		if m.p <= i {
			m.p = i + 1
		}
		m.dropDirectives(m.sig[m.p-1])
		m.closeSpan(id, m.p-1)
	default:
		m.p = i
		if kw != "do" || !m.is(i, "while") {
			m.structural(i-1, "%s without a body", kw)
		}
	}

	if kw == "do" && m.is(m.p, "while") {
		w := m.p
		end := w + 1
		if m.is(end, "(") {
			c, _ := m.matchGroup(end)
			end = c + 1
		}
		if m.is(end, ";") {
			end++
		}
		m.t.region(id).Trailer = m.span(w, end)
		m.closeSpan(id, end-1)
		m.p = end
	}
}

// enumerator reads "NAME [= value]" up to the next top-level ',' or the
// closing brace.
func (m *matcher) enumerator(parent ID) {
	start := m.p
	i := start
	for i < m.n() && !m.is(i, ",") && !m.is(i, "}") {
		switch m.text(i) {
		case "(", "[", "{":
			c, _ := m.matchGroup(i)
			i = c
		case ";":
			// a ';' inside an enum body: the '}' is missing
			m.structural(i, "unexpected ';' in enum body")
		}
		i++
	}
	end := i
	if m.is(i, ",") {
		end++
	}
	id := m.simple(parent, Statement, SubEnumerator, start, end)
	if m.ident(start) {
		r := m.t.region(id)
		r.Name, r.NameToken = m.text(start), m.sig[start]
		r.Declarators = []int{m.sig[start]}
	}
}
