package region

import (
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// declaration reads one element at namespace or class scope.
func (m *matcher) declaration(parent ID, st state, className string) {
	start := m.p
	s := m.text(start)
	switch {
	case s == ";":
		m.simple(parent, Statement, SubEmpty, start, start+1)
		return
	case s == "{":
		m.block(parent, start, start, st, className)
		return
	case m.bareMacro(start):
		id := m.simple(parent, Meta, SubMacroCall, start, start+1)
		r := m.t.region(id)
		r.Name, r.NameToken = s, m.sig[start]
		return
	case s == "namespace" || (s == "inline" && m.is(start+1, "namespace")):
		m.namespace(parent, start)
		return
	case s == "extern" && m.kind(start+1) == lexer.Literal && m.is(start+2, "{"):
		m.externBlock(parent, start)
		return
	case s == "using":
		m.using(parent, start)
		return
	case s == "typedef":
		m.typedef(parent, start, st)
		return
	case st == inType && (accessKeywords[s] || s == "signals" || s == "Q_SIGNALS"):
		if m.visibility(parent, start) {
			return
		}
	case st == inType && s == "friend":
		if m.friend(parent, start) {
			return
		}
	case asmWords[s]:
		m.assembler(parent, start)
		return
	case s == "static_assert" || s == "_Static_assert":
		m.untilSemicolon(parent, Statement, SubStaticAssert, start)
		return
	case controlKeywords[s] && m.kind(start) == lexer.Keyword:
		// snippets without an enclosing function
		m.control(parent, start)
		return
	}

	head := start
	for m.is(head, "template") {
		head = m.skipTemplateParams(head + 1)
	}
	for specifiers[m.text(head)] {
		head++
	}
	switch m.text(head) {
	case "class", "struct", "union", "enum":
		if m.typeRegion(parent, start, head, false) {
			return
		}
		if m.forward(parent, start, head) {
			return
		}
	}
	m.declarator(parent, start, head, st, className)
}

// bareMacro recognizes an all-caps identifier standing alone on its line,
// such as Q_OBJECT, followed by a keyword, a closing brace or nothing.
func (m *matcher) bareMacro(i int) bool {
	if !m.ident(i) || !IsMacroName(m.text(i)) {
		return false
	}
	next := i + 1
	if next >= m.n() {
		return true
	}
	if !m.laterLine(i, next) {
		return false
	}
	return m.is(next, "}") || m.kind(next) == lexer.Keyword
}

// skipTemplateParams skips "<...>" at i and returns the index after it.
func (m *matcher) skipTemplateParams(i int) int {
	if !m.is(i, "<") {
		return i
	}
	if close, ok := m.matchAngle(i); ok {
		return close + 1
	}
	return i
}

func (m *matcher) block(parent ID, start, open int, st state, className string) {
	sub := ""
	if open > start {
		sub = SubUnknownBlock
	}
	id := m.open(parent, Region{Kind: Block, Sub: sub, NameToken: -1, Header: m.span(start, open)}, start)
	m.body(id, open, st, className)
}

// untilSemicolon adds a region ending at the next top-level ';'.
func (m *matcher) untilSemicolon(parent ID, kind Kind, sub string, start int) ID {
	end, reason := m.scanStatement(start)
	id := m.simple(parent, kind, sub, start, end)
	if reason != endSemicolon {
		m.structural(end-1, "missing ';' after %s", m.text(start))
	}
	return id
}

func (m *matcher) namespace(parent ID, start int) {
	i := start
	if m.is(i, "inline") {
		i++
	}
	i++
	var segs []string
	nameTok := -1
	for m.ident(i) || m.is(i, "::") || m.is(i, "inline") {
		if m.ident(i) {
			segs = append(segs, m.text(i))
			nameTok = m.sig[i]
		}
		i++
	}
	var name string
	var qual []string
	if len(segs) > 0 {
		name, qual = segs[len(segs)-1], segs[:len(segs)-1]
	}
	switch {
	case m.is(i, "="):
		id := m.untilSemicolon(parent, Meta, SubNamespaceAlias, start)
		r := m.t.region(id)
		r.Name, r.NameToken = name, nameTok
	case m.is(i, "{"):
		id := m.open(parent, Region{
			Kind:      Namespace,
			Name:      name,
			Qualifier: qual,
			NameToken: nameTok,
			Header:    m.span(start, i),
		}, start)
		m.body(id, i, topLevel, "")
	default:
		m.structural(i, "malformed namespace declaration")
		m.untilSemicolon(parent, Statement, SubExpression, start)
	}
}

func (m *matcher) externBlock(parent ID, start int) {
	open := start + 2
	id := m.open(parent, Region{
		Kind:      Meta,
		Sub:       SubExternBlock,
		Name:      strings.Trim(m.text(start+1), `"`),
		NameToken: -1,
		Header:    m.span(start, open),
	}, start)
	m.body(id, open, topLevel, "")
}

func (m *matcher) using(parent ID, start int) {
	if m.ident(start+1) && m.is(start+2, "=") {
		id := m.untilSemicolon(parent, Meta, SubTypeAlias, start)
		r := m.t.region(id)
		r.Name, r.NameToken = m.text(start+1), m.sig[start+1]
		return
	}
	id := m.untilSemicolon(parent, Meta, SubUsing, start)
	r := m.t.region(id)
	for i := m.p - 1; i > start; i-- {
		if m.ident(i) {
			r.Name, r.NameToken = m.text(i), m.sig[i]
			break
		}
	}
}

func (m *matcher) typedef(parent ID, start int, st state) {
	head := start + 1
	for specifiers[m.text(head)] {
		head++
	}
	switch m.text(head) {
	case "class", "struct", "union", "enum":
		if m.typeRegion(parent, start, head, true) {
			return
		}
	}
	id := m.untilSemicolon(parent, Statement, SubTypedef, start)
	names := m.declarators(start+1, m.p, false)
	r := m.t.region(id)
	r.Declarators = names
	if len(names) > 0 {
		r.Name, r.NameToken = m.t.Tokens[names[0]].Text, names[0]
	}
}

func (m *matcher) visibility(parent ID, start int) bool {
	end := start + 1
	if m.is(end, "slots") || m.is(end, "Q_SLOTS") {
		end++
	}
	if !m.is(end, ":") {
		return false
	}
	id := m.simple(parent, VisibilitySection, m.text(start), start, end+1)
	m.t.region(id).NameToken = m.sig[start]
	return true
}

// friend records "friend class X;" and "friend int f(...);" as meta regions.
// A friend function defined in place is read as a normal declaration.
func (m *matcher) friend(parent ID, start int) bool {
	for i := start + 1; i < m.n(); i++ {
		switch m.text(i) {
		case "(", "[":
			c, _ := m.matchGroup(i)
			i = c
		case "{", "}":
			return false
		case ";":
			id := m.simple(parent, Meta, SubFriend, start, i+1)
			nameIdx := -1
			for k := start + 1; k < i; k++ {
				if m.is(k, "(") && m.ident(k-1) {
					nameIdx = k - 1
					break
				}
				if m.ident(k) {
					nameIdx = k
				}
			}
			if nameIdx >= 0 {
				r := m.t.region(id)
				r.Name, r.NameToken = m.text(nameIdx), m.sig[nameIdx]
			}
			return true
		}
	}
	return false
}

func (m *matcher) assembler(parent ID, start int) {
	next := start + 1
	switch {
	case m.is(next, "{"):
		close, ok := m.matchGroup(next)
		end := close + 1
		if m.is(end, ";") {
			end++
		}
		m.simple(parent, Meta, SubAssembler, start, end)
		if !ok {
			m.structural(next, "unterminated assembler block")
		}
	case m.is(next, "(") || m.is(next, "volatile") || m.is(next, "__volatile__") || m.is(next, "goto"):
		m.untilSemicolon(parent, Meta, SubAssembler, start)
	default:
		// MSVC single-line form: __asm mov eax, 1
		end := next
		for end < m.n() && !m.laterLine(start, end) && !m.is(end, "}") {
			end++
		}
		m.simple(parent, Meta, SubAssembler, start, end)
	}
}

// typeRegion reads a class, struct, union or enum definition whose keyword
// is at kw. It returns false without consuming anything when no body follows.
func (m *matcher) typeRegion(parent ID, start, kw int, isTypedef bool) bool {
	keyword := m.text(kw)
	i := kw + 1
	if keyword == "enum" && (m.is(i, "class") || m.is(i, "struct")) {
		i++
	}
	var segs []string
	nameTok := -1
	bases := false
	for ; i < m.n(); i++ {
		s := m.text(i)
		switch {
		case s == "{":
			return m.typeBody(parent, start, kw, i, keyword, segs, nameTok, isTypedef)
		case s == ";" || s == "=" || s == ")" || s == "}" || s == ",":
			return false
		case s == "(":
			if m.kind(i-1) != lexer.Keyword && !bases {
				return false
			}
			c, ok := m.matchGroup(i)
			if !ok {
				return false
			}
			i = c
		case s == "<":
			c, ok := m.matchAngle(i)
			if !ok {
				return false
			}
			i = c
		case s == ":":
			bases = true
		case bases:
		case s == "final" && len(segs) > 0:
		case m.ident(i):
			if m.is(i-1, "::") {
				segs = append(segs, s)
			} else {
				segs = []string{s}
			}
			nameTok = m.sig[i]
		}
	}
	return false
}

func (m *matcher) typeBody(parent ID, start, kw, open int, keyword string, segs []string, nameTok int, isTypedef bool) bool {
	kind := map[string]Kind{"class": Class, "struct": Struct, "union": Union, "enum": Enum}[keyword]
	r := Region{Kind: kind, NameToken: nameTok, Header: m.span(start, open)}
	if len(segs) > 0 {
		r.Name, r.Qualifier = segs[len(segs)-1], segs[:len(segs)-1]
	}
	if isTypedef {
		r.Sub = SubTypedef
	}
	id := m.open(parent, r, start)
	st := inType
	if kind == Enum {
		st = inEnum
	}
	if !m.body(id, open, st, r.Name) {
		return true
	}
	closeIdx := m.p - 1
	// declarators after the body: "} a, *b;"
	if m.is(m.p, ";") || m.ident(m.p) || m.is(m.p, "*") || m.is(m.p, "&") {
		if end, reason := m.scanStatement(m.p); reason == endSemicolon {
			names := m.declarators(m.p, end, true)
			rr := m.t.region(id)
			rr.Trailer = m.span(m.p, end-1)
			rr.Declarators = names
			rr.Span.End = m.sig[end-1] + 1
			if rr.Name == "" && isTypedef && len(names) > 0 {
				rr.Name, rr.NameToken = m.t.Tokens[names[0]].Text, names[0]
			}
			m.p = end
			return true
		}
	}
	m.structural(closeIdx, "missing ';' after %s definition", keyword)
	return true
}

// forward reads "class A::B;" or "enum class E : int;".
func (m *matcher) forward(parent ID, start, kw int) bool {
	i := kw + 1
	if m.is(kw, "enum") && (m.is(i, "class") || m.is(i, "struct")) {
		i++
	}
	name, nameTok := "", -1
	for ; i < m.n(); i++ {
		switch {
		case m.ident(i):
			if m.ident(i - 1) {
				return false
			}
			name, nameTok = m.text(i), m.sig[i]
		case m.is(i, "::"):
		case m.is(i, "<"):
			c, ok := m.matchAngle(i)
			if !ok {
				return false
			}
			i = c
		case m.is(i, ":") && m.is(kw, "enum"):
			for i < m.n() && !m.is(i, ";") && !m.is(i, "{") && !m.is(i, "}") {
				i++
			}
			if !m.is(i, ";") {
				return false
			}
			fallthrough
		case m.is(i, ";"):
			if nameTok < 0 {
				return false
			}
			id := m.simple(parent, Meta, SubForward, start, i+1)
			r := m.t.region(id)
			r.Name, r.NameToken = name, nameTok
			return true
		default:
			return false
		}
	}
	return false
}

// header collects what declarator scanning learns about a declaration.
type header struct {
	start   int // first token after any template prefix
	segs    []string
	nameIdx int // sig index of the name token
	nameEnd int // sig index just after the name
	conv    bool
	stop    int // sig index of the token that ended the scan
	paren   int // declarator '(' or -1
}

// scanHeader walks a declaration from start until its declarator '(' or a
// token that ends the header: ';', '{', '}', '=', ',' or ':'.
func (m *matcher) scanHeader(start int) header {
	h := header{start: start, nameIdx: -1, nameEnd: -1, paren: -1}
	name := func(seg string, idx, end int) {
		if m.is(idx-1, "::") || (idx > start && m.is(idx-1, "~") && m.is(idx-2, "::")) {
			h.segs = append(h.segs, seg)
		} else {
			h.segs = []string{seg}
		}
		h.nameIdx, h.nameEnd = idx, end
	}
	i := start
	for i < m.n() {
		s := m.text(i)
		switch {
		case s == ";" || s == "{" || s == "}" || s == "=" || s == "," || s == ":":
			h.stop = i
			return h
		case s == "(":
			if h.nameEnd == i {
				h.paren = i
				h.stop = i
				return h
			}
			c, _ := m.matchGroup(i)
			i = c + 1
		case s == "[":
			c, _ := m.matchGroup(i)
			i = c + 1
		case s == "<":
			if h.nameEnd == i {
				if c, ok := m.matchAngle(i); ok {
					i = c + 1
					h.nameEnd = i
					continue
				}
			}
			i++
		case s == "~" && m.ident(i+1):
			name("~"+m.text(i+1), i+1, i+2)
			i += 2
		case s == "operator" && m.kind(i) == lexer.Keyword:
			op, end, conv := m.operatorName(i)
			name(op, i, end)
			h.conv = conv
			i = end
		case m.ident(i):
			name(s, i, i+1)
			i++
		default:
			i++
		}
	}
	h.stop = m.n()
	return h
}

// declarator reads a declaration that is not introduced by a keyword
// handled elsewhere: functions, function declarations, variables and
// constants, macro invocations.
func (m *matcher) declarator(parent ID, start, head int, st state, className string) {
	h := m.scanHeader(head)
	if h.paren >= 0 {
		m.parenDeclarator(parent, start, st, className, h)
		return
	}
	stop := h.stop
	if m.is(stop, "{") {
		if h.nameIdx == stop-1 && stop-start >= 2 {
			if c, ok := m.matchGroup(stop); ok && (m.is(c+1, ";") || m.is(c+1, ",")) {
				m.variable(parent, start)
				return
			}
		}
		m.block(parent, start, stop, st, className)
		return
	}
	m.variable(parent, start)
}

// variable reads a statement up to ';' and records the names it declares.
func (m *matcher) variable(parent ID, start int) {
	end, reason := m.scanStatement(start)
	names := m.declarators(start, end, false)
	sub := SubExpression
	if len(names) > 0 {
		sub = SubVariable
	}
	if reason == endMacro || reason == endBrace {
		sub = SubMacro
	}
	id := m.simple(parent, Statement, sub, start, end)
	r := m.t.region(id)
	r.Declarators = names
	if len(names) > 0 {
		r.Name, r.NameToken = m.t.Tokens[names[0]].Text, names[0]
		r.Qualifier = m.qualifierBefore(m.indexOfToken(names[0], start, end))
	}
	if reason == endClose || reason == endEOF || reason == endUnbalanced {
		m.structural(end-1, "missing ';' at end of statement")
	}
}

// indexOfToken maps a token index back to its sig index within [from, to).
func (m *matcher) indexOfToken(tok, from, to int) int {
	for i := from; i < to; i++ {
		if m.sig[i] == tok {
			return i
		}
	}
	return -1
}

// qualifierBefore returns the "A::B::" segments written before sig index k.
func (m *matcher) qualifierBefore(k int) []string {
	var qual []string
	for j := k - 1; j >= 1 && m.is(j, "::") && m.ident(j-1); j -= 2 {
		qual = append([]string{m.text(j - 1)}, qual...)
	}
	return qual
}

func (m *matcher) parenDeclarator(parent ID, start int, st state, className string, h header) {
	paren := h.paren
	name := h.segs[len(h.segs)-1]
	qual := append([]string(nil), h.segs[:len(h.segs)-1]...)
	close, ok := m.matchGroup(paren)
	if !ok {
		m.structural(paren, "unbalanced parenthesis")
		m.simple(parent, Statement, SubExpression, start, close+1)
		return
	}
	macroLike := paren == h.start+1 && len(h.segs) == 1 && IsMacroName(name)
	next := close + 1
	if macroLike && (next >= m.n() || m.is(next, ";") || m.is(next, "}") || (m.laterLine(close, next) && !m.is(next, "{") && !m.is(next, ":"))) {
		end := next
		if m.is(next, ";") {
			end++
		}
		id := m.simple(parent, Meta, SubMacroCall, start, end)
		r := m.t.region(id)
		r.Name, r.NameToken = name, m.sig[start]
		return
	}

	j := m.functionTail(close)
	hadTail := j > close+1
	fn := Region{
		Name:      name,
		Qualifier: qual,
		NameToken: m.sig[h.nameIdx],
		Params:    m.inner(paren, close),
	}
	base := ""
	if h.conv {
		base = SubConversionOperator
	}
	if macroLike && st == topLevel {
		base = SubMacroDefined
	}

	switch {
	case m.is(j, "{"):
		m.function(parent, start, j, fn, m.functionSub(name, qual, className, base), Span{})
		return
	case m.is(j, ":"):
		if open := m.initList(j + 1); open >= 0 {
			fn.Init = m.span(j, open)
			m.function(parent, start, open, fn, m.functionSub(name, qual, className, base), fn.Init)
			return
		}
	case m.is(j, "try") && m.is(j+1, "{"):
		m.function(parent, start, j+1, fn, m.functionSub(name, qual, className, base), Span{})
		return
	case m.is(j, ";") || m.is(j, ","):
		kind, sub := FunctionDeclaration, ""
		heuristic := false
		if !hadTail && st != inType {
			if h.nameIdx == h.start {
				// "f(x);" without a type declares only with an empty list
				if close > paren+1 {
					m.variable(parent, start)
					return
				}
			} else {
				kind, sub, heuristic = m.classifyParen(start, h.nameIdx, paren, close, name)
			}
		}
		if kind == FunctionDeclaration {
			m.functionDeclaration(parent, start, j, fn, m.functionSub(name, qual, className, base))
			if heuristic {
				m.ambiguity(start, "%q read as a function declaration", fn.QualifiedHeaderName())
			}
			return
		}
		m.parenVariable(parent, start, sub, fn, h.nameIdx)
		if heuristic {
			m.ambiguity(start, "%q read as a %s initialized with constructor syntax", fn.QualifiedHeaderName(), sub)
		}
		return
	case m.is(j, "="):
		if sub, ok := deletedSubs[m.text(j+1)]; ok && m.is(j+2, ";") {
			m.functionDeclaration(parent, start, j+2, fn, sub)
			return
		}
		m.parenVariable(parent, start, SubVariable, fn, h.nameIdx)
		return
	}

	if !hadTail && m.krParams(paren, close) {
		if open := m.krDeclarations(j); open >= 0 {
			m.function(parent, start, open, fn, SubKR, Span{})
			return
		}
	}
	// a macro expanding to a declaration, or a call left without ';'
	if macroLike {
		id := m.simple(parent, Meta, SubMacroCall, start, close+1)
		r := m.t.region(id)
		r.Name, r.NameToken = name, m.sig[start]
		return
	}
	id := m.simple(parent, Statement, SubMacro, start, close+1)
	r := m.t.region(id)
	r.Name, r.NameToken = name, m.sig[h.nameIdx]
}

var deletedSubs = map[string]string{"0": SubPure, "default": SubDefaulted, "delete": SubDeleted}

func (m *matcher) ambiguity(i int, format string, args ...any) {
	tok := m.tok(i)
	m.list.Addf(anomaly.Ambiguity, tok.Line, tok.Column, format, args...)
}

func (m *matcher) functionSub(name string, qual []string, className, base string) string {
	switch {
	case base != "":
		return base
	case strings.HasPrefix(name, "~"):
		return SubDestructor
	case strings.HasPrefix(name, "operator"):
		return SubOperator
	case len(qual) == 0 && className != "" && name == className:
		return SubConstructor
	case len(qual) > 0 && qual[len(qual)-1] == name:
		return SubConstructor
	}
	return SubFunction
}

func (m *matcher) function(parent ID, start, open int, fn Region, sub string, init Span) {
	fn.Kind = Function
	fn.Sub = sub
	fn.Init = init
	fn.Header = m.span(start, open)
	id := m.open(parent, fn, start)
	m.body(id, open, inMethod, "")
}

func (m *matcher) functionDeclaration(parent ID, start, semi int, fn Region, sub string) {
	end, reason := m.scanStatement(semi)
	if m.is(semi, ";") {
		end, reason = semi+1, endSemicolon
	}
	fn.Kind = FunctionDeclaration
	fn.Sub = sub
	fn.Span = m.span(start, end)
	fn.Header = m.span(start, end-1)
	m.t.add(parent, fn)
	m.p = end
	if reason != endSemicolon {
		m.structural(end-1, "missing ';' after function declaration")
	}
}

// parenVariable records an object initialized with constructor syntax.
func (m *matcher) parenVariable(parent ID, start int, sub string, fn Region, nameIdx int) {
	end, reason := m.scanStatement(start)
	names := m.declarators(start, end, false)
	if len(names) == 0 || names[0] != m.sig[nameIdx] {
		names = append([]int{m.sig[nameIdx]}, names...)
	}
	id := m.simple(parent, Statement, sub, start, end)
	r := m.t.region(id)
	r.Name, r.Qualifier, r.NameToken = fn.Name, fn.Qualifier, fn.NameToken
	r.Declarators = names
	if reason != endSemicolon {
		m.structural(end-1, "missing ';' at end of statement")
	}
}

// functionTail skips what may follow a parameter list: cv and ref
// qualifiers, exception specifications, trailing return types, requires
// clauses and macro annotations on the same line.
func (m *matcher) functionTail(close int) int {
	j := close + 1
	for j < m.n() {
		s := m.text(j)
		switch {
		case tailWords[s]:
			j++
		case s == "noexcept" || s == "throw":
			j++
			if m.is(j, "(") {
				c, _ := m.matchGroup(j)
				j = c + 1
			}
		case s == "->" || s == "requires":
			j = m.skipToBodyOrEnd(j + 1)
		case m.ident(j) && IsMacroName(s) && !m.laterLine(close, j):
			j++
			if m.is(j, "(") {
				c, _ := m.matchGroup(j)
				j = c + 1
			}
		default:
			return j
		}
	}
	return j
}

func (m *matcher) skipToBodyOrEnd(i int) int {
	for i < m.n() {
		switch m.text(i) {
		case "{", ";", "=", "}":
			return i
		case "(", "[":
			c, _ := m.matchGroup(i)
			i = c + 1
		case "<":
			if c, ok := m.matchAngle(i); ok {
				i = c + 1
				continue
			}
			i++
		default:
			i++
		}
	}
	return i
}

// initList skips a constructor initializer list starting after ':' and
// returns the sig index of the body's '{', or -1.
func (m *matcher) initList(i int) int {
	for i < m.n() {
		for m.ident(i) || m.is(i, "::") || m.is(i, "typename") || m.is(i, "template") {
			i++
			if m.is(i, "<") {
				c, ok := m.matchAngle(i)
				if !ok {
					return -1
				}
				i = c + 1
			}
		}
		if !m.is(i, "(") && !m.is(i, "{") {
			return -1
		}
		c, ok := m.matchGroup(i)
		if !ok {
			return -1
		}
		i = c + 1
		if m.is(i, "...") {
			i++
		}
		switch {
		case m.is(i, ","):
			i++
		case m.is(i, "{"):
			return i
		default:
			return -1
		}
	}
	return -1
}

// krParams reports a parameter list made only of identifiers, as in
// "int foo(a, b)".
func (m *matcher) krParams(paren, close int) bool {
	if close <= paren+1 {
		return false
	}
	for i := paren + 1; i < close; i++ {
		if (i-paren)%2 == 1 && !m.ident(i) {
			return false
		}
		if (i-paren)%2 == 0 && !m.is(i, ",") {
			return false
		}
	}
	return true
}

// krDeclarations reads the parameter declarations of a K&R definition,
// starting after the parameter list, and returns the index of the body's '{'.
func (m *matcher) krDeclarations(i int) int {
	for i < m.n() {
		if m.kind(i) != lexer.Keyword && !m.ident(i) {
			return -1
		}
		end, reason := m.scanStatement(i)
		if reason != endSemicolon {
			return -1
		}
		i = end
		if m.is(i, "{") {
			return i
		}
	}
	return -1
}
