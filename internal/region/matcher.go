package region

import (
	"context"
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// DefaultPseudoKeywords are calling conventions and export macros that
// carry no structure and are dropped before matching.
var DefaultPseudoKeywords = []string{
	"__fastcall", "__export", "__forceinline", "_cdecl", "__cdecl", "_stdcall",
	"__stdcall", "__thiscall", "__vectorcall", "WINAPI", "APIENTRY", "CALLBACK",
}

// Options tunes the matcher.
type Options struct {
	// PseudoKeywords replaces DefaultPseudoKeywords when non-nil.
	PseudoKeywords []string
	// AllBranches makes the matcher read every #if/#elif/#else branch.
	// By default only the first branch is read, except after "#if 0".
	AllBranches bool
}

type state int

const (
	topLevel state = iota
	inType
	inMethod
	inEnum
)

type matcher struct {
	ctx  context.Context
	t    *Tree
	list *anomaly.List
	cpp  bool

	sig []int // indices of the tokens the matcher reads
	p   int   // cursor into sig

	dirs    []int // indices of preprocessor tokens
	nextDir int

	cancelled bool
}

// Match builds the region tree for one tokenized file. Structural problems
// are added to list. Cancellation of ctx is checked between top-level and
// class-level elements; the returned tree is then partial but valid.
func Match(ctx context.Context, file, src string, dialect lexer.Dialect, toks []lexer.Token, opts Options, list *anomaly.List) *Tree {
	t := &Tree{File: file, Dialect: dialect, Source: src, Tokens: toks}
	m := &matcher{ctx: ctx, t: t, list: list, cpp: dialect == lexer.CPP}
	m.filter(opts)

	root := t.add(NoRegion, Region{Kind: Root, NameToken: -1, Span: Span{0, len(toks)}, Header: Span{0, 0}})
	t.regions[root].Body = Span{0, len(toks)}
	m.parseElements(root, topLevel, "", false)
	m.emitDirectives(root, len(toks))
	return t
}

type branch struct {
	active bool
	taken  bool
}

// filter selects the significant tokens: no trivia, no directives, nothing
// from skipped conditional branches, no pseudo keywords and no attribute
// groups.
func (m *matcher) filter(opts Options) {
	pseudoList := opts.PseudoKeywords
	if pseudoList == nil {
		pseudoList = DefaultPseudoKeywords
	}
	pseudo := make(map[string]bool, len(pseudoList))
	for _, w := range pseudoList {
		pseudo[w] = true
	}

	var stack []branch
	inactive := func() bool {
		for _, b := range stack {
			if !b.active {
				return true
			}
		}
		return false
	}
	var cand []int
	for i, tok := range m.t.Tokens {
		if tok.Kind == lexer.Preprocessor {
			m.dirs = append(m.dirs, i)
			stack = m.conditional(stack, tok, opts.AllBranches)
			continue
		}
		if tok.Kind.Trivia() || inactive() {
			continue
		}
		if tok.Kind == lexer.Identifier && pseudo[tok.Text] {
			continue
		}
		cand = append(cand, i)
	}
	if len(stack) > 0 {
		last := m.t.Tokens[len(m.t.Tokens)-1]
		m.list.Add(anomaly.Structural, last.Line, last.Column, "unterminated #if at end of file")
	}

	toks := m.t.Tokens
	for j := 0; j < len(cand); j++ {
		text := toks[cand[j]].Text
		switch {
		case attributeWords[text] && j+1 < len(cand) && toks[cand[j+1]].Text == "(":
			j = skipBalanced(toks, cand, j+1, "(", ")")
			continue
		case text == "[" && j+1 < len(cand) && toks[cand[j+1]].Text == "[" && m.cpp:
			j = skipBalanced(toks, cand, j, "[", "]")
			continue
		}
		m.sig = append(m.sig, cand[j])
	}
}

var attributeWords = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true,
}

// skipBalanced returns the position in cand of the bracket closing the one at j.
func skipBalanced(toks []lexer.Token, cand []int, j int, open, close string) int {
	depth := 0
	for ; j < len(cand); j++ {
		switch toks[cand[j]].Text {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(cand) - 1
}

func (m *matcher) conditional(stack []branch, tok lexer.Token, all bool) []branch {
	name := tok.DirectiveName()
	switch name {
	case "if", "ifdef", "ifndef":
		active := !(name == "if" && isIfZero(tok.Text))
		return append(stack, branch{active: active, taken: active})
	case "elif", "elifdef", "elifndef", "else":
		if len(stack) == 0 {
			m.list.Addf(anomaly.Structural, tok.Line, tok.Column, "#%s without #if", name)
			return stack
		}
		top := &stack[len(stack)-1]
		switch {
		case top.taken && !all:
			top.active = false
		case name == "elif":
			top.active = !isIfZero(tok.Text)
		default:
			top.active = true
		}
		top.taken = top.taken || top.active
	case "endif":
		if len(stack) == 0 {
			m.list.Add(anomaly.Structural, tok.Line, tok.Column, "#endif without #if")
			return stack
		}
		return stack[:len(stack)-1]
	}
	return stack
}

func isIfZero(text string) bool {
	text = strings.TrimLeft(text[1:], " \t")
	for _, kw := range []string{"elif", "if"} {
		if strings.HasPrefix(text, kw) {
			text = text[len(kw):]
			break
		}
	}
	fields := strings.Fields(text)
	return len(fields) > 0 && fields[0] == "0"
}

// parseElements reads elements into parent until the closing brace of a
// nested body or the end of input. It returns the sig index of the closing
// brace, or -1.
func (m *matcher) parseElements(parent ID, st state, className string, nested bool) int {
	for {
		if m.p >= len(m.sig) {
			m.emitDirectives(parent, len(m.t.Tokens))
			return -1
		}
		if (st == topLevel || st == inType) && m.ctx.Err() != nil {
			m.cancel()
			m.emitDirectives(parent, len(m.t.Tokens))
			return -1
		}
		if m.is(m.p, "}") {
			if nested {
				m.emitDirectives(parent, m.sig[m.p])
				return m.p
			}
			m.dangling(parent)
			continue
		}
		m.emitDirectives(parent, m.sig[m.p])
		start := m.p
		switch st {
		case inEnum:
			m.enumerator(parent)
		case inMethod:
			m.statement(parent)
		default:
			m.declaration(parent, st, className)
		}
		if m.p <= start {
			m.t.add(parent, Region{Kind: Unknown, NameToken: -1, Span: m.span(start, start+1), Header: m.span(start, start+1)})
			m.p = start + 1
		}
		m.dropDirectives(m.sig[m.p-1])
	}
}

func (m *matcher) cancel() {
	if m.cancelled {
		return
	}
	m.cancelled = true
	m.t.Partial = true
	line, col := 1, 1
	if m.p > 0 {
		tok := m.tok(m.p - 1)
		line, col = tok.Line, tok.Column
	}
	m.list.Addf(anomaly.Cancelled, line, col, "matching stopped: %v", m.ctx.Err())
	m.p = len(m.sig)
}

func (m *matcher) dangling(parent ID) {
	m.emitDirectives(parent, m.sig[m.p])
	tok := m.tok(m.p)
	m.t.add(parent, Region{
		Kind:      Anomaly,
		Sub:       SubDanglingBrace,
		NameToken: -1,
		Span:      m.span(m.p, m.p+1),
		Header:    m.span(m.p, m.p+1),
	})
	m.list.Add(anomaly.Structural, tok.Line, tok.Column, "unmatched closing brace")
	m.p++
}

// closeSpan ends region id after sig index last. A child left open at end
// of input keeps the parent open too.
func (m *matcher) closeSpan(id ID, last int) {
	r := m.t.region(id)
	end := m.sig[last] + 1
	if n := len(r.children); n > 0 {
		if c := m.t.region(r.children[n-1]).Span.End; c > end {
			end = c
		}
	}
	r.Span.End = end
}

// body reads the braced body opened at sig index open into region id and
// completes its Body and Span. The cursor ends after the closing brace.
func (m *matcher) body(id ID, open int, st state, className string) bool {
	m.dropDirectives(m.sig[open])
	m.p = open + 1
	closeIdx := m.parseElements(id, st, className, true)
	r := m.t.region(id)
	if closeIdx < 0 {
		r.Body = Span{m.sig[open] + 1, len(m.t.Tokens)}
		r.Span.End = len(m.t.Tokens)
		if !m.cancelled {
			tok := m.tok(open)
			m.list.Addf(anomaly.Structural, tok.Line, tok.Column, "missing closing brace for %s opened here", r.Kind)
		}
		return false
	}
	r.Body = Span{m.sig[open] + 1, m.sig[closeIdx]}
	r.Span.End = m.sig[closeIdx] + 1
	m.p = closeIdx + 1
	return true
}

func (m *matcher) emitDirectives(parent ID, before int) {
	for m.nextDir < len(m.dirs) && m.dirs[m.nextDir] < before {
		d := m.dirs[m.nextDir]
		m.t.add(parent, Region{
			Kind:      Meta,
			Sub:       SubDirective,
			Name:      m.t.Tokens[d].DirectiveName(),
			NameToken: d,
			Span:      Span{d, d + 1},
			Header:    Span{d, d + 1},
		})
		m.nextDir++
	}
}

func (m *matcher) dropDirectives(before int) {
	for m.nextDir < len(m.dirs) && m.dirs[m.nextDir] < before {
		m.nextDir++
	}
}

// simple adds a region covering sig range [start, end) and moves the cursor to end.
func (m *matcher) simple(parent ID, kind Kind, sub string, start, end int) ID {
	if end <= start {
		end = start + 1
	}
	id := m.t.add(parent, Region{
		Kind:      kind,
		Sub:       sub,
		NameToken: -1,
		Span:      m.span(start, end),
		Header:    m.span(start, end),
	})
	m.p = end
	return id
}

// open adds a region starting at sig index start whose end is set later.
func (m *matcher) open(parent ID, r Region, start int) ID {
	r.Span = m.span(start, start+1)
	return m.t.add(parent, r)
}

func (m *matcher) n() int { return len(m.sig) }

func (m *matcher) tok(i int) lexer.Token { return m.t.Tokens[m.sig[i]] }

func (m *matcher) text(i int) string {
	if i < 0 || i >= len(m.sig) {
		return ""
	}
	return m.t.Tokens[m.sig[i]].Text
}

func (m *matcher) kind(i int) lexer.Kind {
	if i < 0 || i >= len(m.sig) {
		return lexer.EOF
	}
	return m.t.Tokens[m.sig[i]].Kind
}

func (m *matcher) is(i int, text string) bool {
	return i >= 0 && i < len(m.sig) && m.t.Tokens[m.sig[i]].Text == text
}

func (m *matcher) ident(i int) bool { return m.kind(i) == lexer.Identifier }

// laterLine reports whether sig token j starts on a later line than token i.
func (m *matcher) laterLine(i, j int) bool {
	if j >= len(m.sig) {
		return true
	}
	return m.tok(j).Line > m.tok(i).Line
}

// tokAt maps a sig index to a token index; the end maps past the last token.
func (m *matcher) tokAt(i int) int {
	if i < len(m.sig) {
		return m.sig[i]
	}
	return len(m.t.Tokens)
}

// span converts the sig range [a, b) to a token span.
func (m *matcher) span(a, b int) Span {
	if b > len(m.sig) {
		b = len(m.sig)
	}
	if b <= a {
		pos := m.tokAt(a)
		return Span{pos, pos}
	}
	return Span{m.sig[a], m.sig[b-1] + 1}
}

// inner is the token span strictly between the brackets at sig open and close.
func (m *matcher) inner(open, close int) Span {
	if close <= open || close >= len(m.sig) {
		return Span{m.sig[open] + 1, m.sig[open] + 1}
	}
	return Span{m.sig[open] + 1, m.sig[close]}
}

func (m *matcher) structural(i int, format string, args ...any) {
	if i >= len(m.sig) {
		i = len(m.sig) - 1
	}
	if i < 0 {
		return
	}
	tok := m.tok(i)
	m.list.Addf(anomaly.Structural, tok.Line, tok.Column, format, args...)
}

var closers = map[string]string{")": "(", "]": "[", "}": "{"}

// matchGroup returns the sig index of the bracket closing the one at open.
// A '}' that closes an enclosing block ends the group early; the index of
// the last token inside the group is returned with false.
func (m *matcher) matchGroup(open int) (int, bool) {
	var stack []string
	for i := open; i < len(m.sig); i++ {
		s := m.text(i)
		switch s {
		case "(", "[", "{":
			stack = append(stack, s)
		case ")", "]", "}":
			if len(stack) == 0 {
				return i - 1, false
			}
			if stack[len(stack)-1] != closers[s] {
				if s == "}" {
					return i - 1, false
				}
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return len(m.sig) - 1, false
}

// matchAngle confirms a tentative template argument list opened at open: it
// succeeds when the matching '>' comes before any ';', '{' or '}'.
func (m *matcher) matchAngle(open int) (int, bool) {
	if !m.cpp {
		return open, false
	}
	depth := 0
	for i := open; i < len(m.sig); i++ {
		switch m.text(i) {
		case "<":
			depth++
		case ">":
			depth--
		case ">>":
			depth -= 2
		case "(", "[":
			close, ok := m.matchGroup(i)
			if !ok {
				return open, false
			}
			i = close
		case ";", "{", "}", ")", "]":
			return open, false
		}
		if depth <= 0 {
			return i, true
		}
	}
	return open, false
}
