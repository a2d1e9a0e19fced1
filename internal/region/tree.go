// Package region groups a token stream into a loose tree of namespaces,
// types, functions, blocks and statements.
//
// Regions live in an arena owned by a Tree and refer to each other by ID.
// Spans are half-open ranges of token indices into Tree.Tokens. Once Match
// returns, a Tree is never modified and may be shared between goroutines.
package region

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// ID identifies a region within its Tree.
type ID int

// NoRegion is the parent of the root.
const NoRegion ID = -1

// Span is a half-open range [Start, End) of token indices.
type Span struct {
	Start int
	End   int
}

// Empty reports whether the span holds no tokens.
func (s Span) Empty() bool { return s.End <= s.Start }

// Len returns the number of tokens in the span.
func (s Span) Len() int {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Kind is the structural class of a region.
type Kind int

const (
	Root Kind = iota
	Namespace
	Class
	Struct
	Union
	Enum
	Function
	FunctionDeclaration
	Block
	Statement
	ControlStatement
	VisibilitySection
	// Meta covers directives, using declarations, forward declarations,
	// extern blocks, labels, macro invocations and similar non-code.
	Meta
	// Anomaly marks tokens the matcher could not place, such as a dangling '}'.
	Anomaly
	Unknown
)

var kindNames = [...]string{
	Root:                "root",
	Namespace:           "namespace",
	Class:               "class",
	Struct:              "struct",
	Union:               "union",
	Enum:                "enum",
	Function:            "function",
	FunctionDeclaration: "function declaration",
	Block:               "block",
	Statement:           "statement",
	ControlStatement:    "control statement",
	VisibilitySection:   "visibility section",
	Meta:                "meta",
	Anomaly:             "anomaly",
	Unknown:             "unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsType reports whether the kind is a class, struct, union or enum.
func (k Kind) IsType() bool {
	return k == Class || k == Struct || k == Union || k == Enum
}

// Sub-types stored in Region.Sub.
const (
	SubFunction           = "function"
	SubConstructor        = "constructor"
	SubDestructor         = "destructor"
	SubOperator           = "operator"
	SubConversionOperator = "conversion operator"
	SubKR                 = "K&R"
	SubMacroDefined       = "macro-defined"
	SubPure               = "pure"
	SubDefaulted          = "defaulted"
	SubDeleted            = "deleted"

	SubVariable     = "variable"
	SubConstant     = "constant"
	SubExpression   = "expression"
	SubEmpty        = "empty"
	SubMacro        = "expanded macro"
	SubTypedef      = "typedef"
	SubEnumerator   = "enumerator"
	SubStaticAssert = "static_assert"

	SubDirective      = "preprocessor directive"
	SubUsing          = "using"
	SubTypeAlias      = "type alias"
	SubNamespaceAlias = "namespace alias"
	SubForward        = "forward declaration"
	SubExternBlock    = "extern block"
	SubAssembler      = "assembler"
	SubLabel          = "label"
	SubCaseLabel      = "case label"
	SubMacroCall      = "macro invocation"
	SubFriend         = "friend"

	SubDanglingBrace = "dangling closing brace"
	SubUnknownBlock  = "unknown"
)

// Region is one node of the tree.
type Region struct {
	Kind Kind
	// Sub refines Kind: the control keyword for control statements, the
	// access keyword for visibility sections, or one of the Sub* constants.
	Sub string
	// Name is the last name segment written in the header, e.g. "method",
	// "~Foo" or "operator+". Empty for anonymous regions.
	Name string
	// Qualifier holds explicit qualifying segments, ["A", "B"] for A::B::m.
	Qualifier []string
	// NameToken is the token index of the name, or -1.
	NameToken int
	Parent    ID

	Span   Span // every token of the region
	Header Span // tokens before the opening brace, or the whole region when it has none
	Params Span // contents of the declarator parameter list
	Init   Span // constructor initializer list, starting at ':'
	Body   Span // contents between the braces
	// Trailer holds tokens after the closing brace up to ';', such as the
	// declarators of "struct S {...} a, *b;" or "while (x)" of a do loop.
	Trailer Span
	// Declarators are token indices of variable (or typedef) names declared
	// by a statement or by a type's trailer.
	Declarators []int

	children []ID
}

// Tree is the shallow parse of one file.
type Tree struct {
	File    string
	Dialect lexer.Dialect
	Source  string
	Tokens  []lexer.Token
	// Partial is set when matching stopped early because of cancellation.
	Partial bool

	regions []Region
}

// WithFile returns a copy of t that reports file as its path. Tokens and
// regions are shared.
func (t *Tree) WithFile(file string) *Tree {
	c := *t
	c.File = file
	return &c
}

// Root returns the ID of the file region.
func (t *Tree) Root() ID { return 0 }

// Len returns the number of regions.
func (t *Tree) Len() int { return len(t.regions) }

// Get returns a copy of the region.
func (t *Tree) Get(id ID) Region {
	r := t.regions[id]
	r.children = nil
	r.Qualifier = append([]string(nil), r.Qualifier...)
	r.Declarators = append([]int(nil), r.Declarators...)
	return r
}

// Kind returns the kind of a region without copying it.
func (t *Tree) Kind(id ID) Kind { return t.regions[id].Kind }

// Parent returns the parent of a region, NoRegion for the root.
func (t *Tree) Parent(id ID) ID { return t.regions[id].Parent }

// Children returns the ordered children of a region.
func (t *Tree) Children(id ID) []ID {
	return append([]ID(nil), t.regions[id].children...)
}

// Walk visits regions in document order. Returning false from fn skips
// the children of that region.
func (t *Tree) Walk(fn func(id ID, depth int) bool) {
	if len(t.regions) == 0 {
		return
	}
	t.walk(t.Root(), 0, fn)
}

func (t *Tree) walk(id ID, depth int, fn func(ID, int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, c := range t.regions[id].children {
		t.walk(c, depth+1, fn)
	}
}

// Text returns the source text covered by a span, trivia included.
func (t *Tree) Text(s Span) string {
	if s.Empty() {
		return ""
	}
	return t.Source[t.Tokens[s.Start].Offset:t.Tokens[s.End-1].End]
}

// Significant returns the indices of the non-trivia, non-directive tokens in s.
func (t *Tree) Significant(s Span) []int {
	var out []int
	for i := s.Start; i < s.End; i++ {
		k := t.Tokens[i].Kind
		if k.Trivia() || k == lexer.Preprocessor {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Position returns the line and column of the first token of a region.
func (t *Tree) Position(id ID) (line, column int) {
	s := t.regions[id].Span
	if s.Empty() || s.Start >= len(t.Tokens) {
		return 1, 1
	}
	tok := t.Tokens[s.Start]
	return tok.Line, tok.Column
}

// QualifiedHeaderName joins Qualifier and Name with "::".
func (r Region) QualifiedHeaderName() string {
	if len(r.Qualifier) == 0 {
		return r.Name
	}
	return strings.Join(r.Qualifier, "::") + "::" + r.Name
}

// Verify checks the tree invariants: every child span lies inside its
// parent, siblings do not overlap and appear in document order, and parent
// links agree with child lists.
func (t *Tree) Verify() error {
	if len(t.regions) == 0 {
		return fmt.Errorf("empty tree")
	}
	if t.regions[0].Kind != Root || t.regions[0].Parent != NoRegion {
		return fmt.Errorf("region 0 is not a root")
	}
	seen := make([]bool, len(t.regions))
	var check func(id ID) error
	check = func(id ID) error {
		if seen[id] {
			return fmt.Errorf("region %d reached twice", id)
		}
		seen[id] = true
		r := t.regions[id]
		prevEnd := r.Span.Start
		for _, c := range r.children {
			cr := t.regions[c]
			if cr.Parent != id {
				return fmt.Errorf("region %d has parent %d, listed under %d", c, cr.Parent, id)
			}
			if !r.Span.Contains(cr.Span) {
				return fmt.Errorf("region %d %v escapes parent %d %v", c, cr.Span, id, r.Span)
			}
			if cr.Span.Start < prevEnd {
				return fmt.Errorf("region %d %v overlaps its previous sibling", c, cr.Span)
			}
			prevEnd = cr.Span.End
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(0); err != nil {
		return err
	}
	for id, ok := range seen {
		if !ok {
			return fmt.Errorf("region %d is unreachable", id)
		}
	}
	return nil
}

func (t *Tree) add(parent ID, r Region) ID {
	id := ID(len(t.regions))
	r.Parent = parent
	t.regions = append(t.regions, r)
	if parent != NoRegion {
		t.regions[parent].children = append(t.regions[parent].children, id)
	}
	return id
}

func (t *Tree) region(id ID) *Region {
	return &t.regions[id]
}
