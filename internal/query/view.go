// Package query is the read-only view downstream analyses use on a parsed
// file. It never exposes anything that can change the tree.
package query

import (
	"iter"
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/resolve"
)

// View wraps a tree and its resolution. It is safe for concurrent use
// since neither is modified after construction.
type View struct {
	tree *region.Tree
	res  *resolve.Resolution
}

// New returns a view over tree. A nil resolution is computed.
func New(tree *region.Tree, res *resolve.Resolution) *View {
	if res == nil {
		res = resolve.Resolve(tree)
	}
	return &View{tree: tree, res: res}
}

// Member is a region declared directly in a class body.
type Member struct {
	ID         region.ID
	Region     region.Region
	Visibility resolve.Visibility
}

func (v *View) File() string { return v.tree.File }

func (v *View) Dialect() lexer.Dialect { return v.tree.Dialect }

// Partial reports a tree cut short by cancellation.
func (v *View) Partial() bool { return v.tree.Partial }

func (v *View) Root() region.ID { return v.tree.Root() }

func (v *View) Len() int { return v.tree.Len() }

func (v *View) Parent(id region.ID) region.ID { return v.tree.Parent(id) }

// Region returns a copy of the region.
func (v *View) Region(id region.ID) region.Region { return v.tree.Get(id) }

// Children returns the ordered children of id.
func (v *View) Children(id region.ID) []region.ID { return v.tree.Children(id) }

// Walk visits regions in document order. Returning false skips the
// children of the current region.
func (v *View) Walk(fn func(id region.ID, depth int) bool) { v.tree.Walk(fn) }

// OfKind yields the regions of the given kinds in document order.
func (v *View) OfKind(kinds ...region.Kind) iter.Seq[region.ID] {
	return func(yield func(region.ID) bool) {
		stop := false
		v.tree.Walk(func(id region.ID, _ int) bool {
			if stop {
				return false
			}
			k := v.tree.Kind(id)
			for _, want := range kinds {
				if k == want {
					if !yield(id) {
						stop = true
						return false
					}
					break
				}
			}
			return true
		})
	}
}

// Members returns the members of a class, struct or union with the
// visibility in effect where each one is declared. Visibility labels
// themselves are not members.
func (v *View) Members(class region.ID) []Member {
	if !v.tree.Kind(class).IsType() {
		return nil
	}
	var out []Member
	for _, c := range v.tree.Children(class) {
		if v.tree.Kind(c) == region.VisibilitySection {
			continue
		}
		out = append(out, Member{ID: c, Region: v.tree.Get(c), Visibility: v.res.Visibility(c)})
	}
	return out
}

// HeaderSpan returns the span of the region's header. For functions it
// includes a constructor initializer list and K&R parameter declarations.
func (v *View) HeaderSpan(id region.ID) region.Span { return v.tree.Get(id).Header }

// InitializerSpan returns the constructor initializer list, ':' included,
// or an empty span.
func (v *View) InitializerSpan(id region.ID) region.Span { return v.tree.Get(id).Init }

// HeaderTokens returns every token of the header, whitespace and comments
// included, so that layout can be checked.
func (v *View) HeaderTokens(id region.ID) []lexer.Token { return v.Tokens(v.HeaderSpan(id)) }

// InitializerTokens returns every token of the initializer list.
func (v *View) InitializerTokens(id region.ID) []lexer.Token {
	return v.Tokens(v.InitializerSpan(id))
}

// Tokens returns a copy of the tokens in s.
func (v *View) Tokens(s region.Span) []lexer.Token {
	if s.Empty() {
		return nil
	}
	return append([]lexer.Token(nil), v.tree.Tokens[s.Start:s.End]...)
}

// Token returns the token at index i.
func (v *View) Token(i int) lexer.Token { return v.tree.Tokens[i] }

// Visibility returns the access level of a class member, or NoVisibility
// outside classes.
func (v *View) Visibility(id region.ID) resolve.Visibility { return v.res.Visibility(id) }

// Text returns the source text of a region.
func (v *View) Text(id region.ID) string { return v.tree.Text(v.tree.Get(id).Span) }

// SpanText returns the source text of a span.
func (v *View) SpanText(s region.Span) string { return v.tree.Text(s) }

// Position returns the line and column where a region starts.
func (v *View) Position(id region.ID) (line, column int) { return v.tree.Position(id) }

// QualifiedName returns the resolved name of a region joined with "::".
func (v *View) QualifiedName(id region.ID) (string, bool) {
	name, ok := v.res.QualifiedName(id)
	if !ok {
		return "", false
	}
	return strings.Join(name, "::"), true
}

// Declarations returns every declaration of the file.
func (v *View) Declarations() []resolve.Declaration { return v.res.Declarations() }

// Lookup returns the declarations with the given qualified name.
func (v *View) Lookup(name string) []resolve.Declaration { return v.res.Lookup(name) }

// ScopeVariables returns the variables declared directly in a scope.
func (v *View) ScopeVariables(scope region.ID) []resolve.Declaration {
	return v.res.ScopeVariables(scope)
}

// Shadows returns the variables hiding a variable of an enclosing scope.
func (v *View) Shadows() []resolve.Shadow { return v.res.Shadows() }
