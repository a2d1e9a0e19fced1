package region

import (
	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// reader returns a matcher over an arbitrary list of token indices, used
// to apply the declaration rules outside of matching.
func (t *Tree) reader(sig []int) *matcher {
	return &matcher{t: t, sig: sig, cpp: t.Dialect == lexer.CPP, list: &anomaly.List{}}
}

// DeclaredNames returns the token indices of the names declared by the
// declaration in s, or nil when s does not read as a declaration. A name
// counts only when a type precedes it, so "i = 0" declares nothing while
// "int i = 0" declares i.
func (t *Tree) DeclaredNames(s Span) []int {
	sig := t.Significant(s)
	return t.reader(sig).declarators(0, len(sig), false)
}

// ParameterNames returns the token indices of the parameter names in a
// parameter list span. With kr set every bare identifier is a name.
func (t *Tree) ParameterNames(s Span, kr bool) []int {
	sig := t.Significant(s)
	m := t.reader(sig)
	var out []int
	for _, a := range m.splitArgs(-1, len(sig)) {
		from, to := a[0], a[1]
		if kr {
			if to-from == 1 && m.ident(from) {
				out = append(out, sig[from])
			}
			continue
		}
		name := -1
	scan:
		for i := from; i < to; i++ {
			switch m.text(i) {
			case "=":
				break scan
			case "(":
				if p := m.pointerGroup(i); p >= 0 {
					name = p
					break scan
				}
				c, _ := m.matchGroup(i)
				i = c
			case "[":
				c, _ := m.matchGroup(i)
				i = c
			case "<":
				if m.ident(i - 1) {
					if c, ok := m.matchAngle(i); ok && c < to {
						i = c
					}
				}
			default:
				if m.ident(i) && i > from && m.typeish(i-1) {
					name = i
				}
			}
		}
		if name >= 0 {
			out = append(out, sig[name])
		}
	}
	return out
}

// LoopInit returns the part of a control header's parameter span up to the
// first top-level ';', or the whole span when there is none. A range-for
// header is returned whole; its declarators stop at the ':'.
func (t *Tree) LoopInit(s Span) Span {
	sig := t.Significant(s)
	m := t.reader(sig)
	for i := 0; i < len(sig); i++ {
		switch m.text(i) {
		case "(", "[", "{":
			c, _ := m.matchGroup(i)
			i = c
		case ";":
			if i == 0 {
				return Span{s.Start, s.Start}
			}
			return Span{s.Start, sig[i-1] + 1}
		}
	}
	return s
}
