// Package resolve assigns qualified names to the regions of a tree and
// collects the variables declared in each scope.
package resolve

import (
	"strings"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
)

// Kind of a declared name.
type Kind int

const (
	Namespace Kind = iota
	Class
	Enum
	Enumerator
	Typedef
	Function
	Variable
	Constant
	Parameter
)

var kindNames = [...]string{"namespace", "class", "enum", "enumerator", "typedef", "function", "variable", "constant", "parameter"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Declaration is a name introduced by a region.
type Declaration struct {
	Name       []string // absolute qualified name
	Kind       Kind
	Region     region.ID // declaring region
	Token      int       // token index of the name, -1 when the name has none
	Offset     int       // byte offset of the name
	Scope      region.ID // region whose scope the name belongs to
	Visibility Visibility
}

// Simple returns the last segment of the name.
func (d Declaration) Simple() string {
	if len(d.Name) == 0 {
		return ""
	}
	return d.Name[len(d.Name)-1]
}

// Qualified returns the name joined with "::".
func (d Declaration) Qualified() string {
	return strings.Join(d.Name, "::")
}

// Shadow pairs an inner variable with the outer one it hides.
type Shadow struct {
	Inner, Outer Declaration
}

// Resolution holds the names computed for one tree. It is immutable.
type Resolution struct {
	tree       *region.Tree
	decls      []Declaration
	names      map[region.ID][]string
	byRegion   map[region.ID][]int
	scopes     map[region.ID][]int
	visibility map[region.ID]Visibility
	shadows    []Shadow
}

// Resolve walks the tree once, keeping a stack of scope frames.
func Resolve(t *region.Tree) *Resolution {
	r := &resolver{
		tree:  t,
		known: make(map[string]bool),
		res: &Resolution{
			tree:       t,
			names:      make(map[region.ID][]string),
			byRegion:   make(map[region.ID][]int),
			scopes:     make(map[region.ID][]int),
			visibility: make(map[region.ID]Visibility),
		},
	}
	r.collect(t.Root(), nil)
	r.walk(t.Root())
	r.res.shadows = r.findShadows()
	return r.res
}

type resolver struct {
	tree   *region.Tree
	res    *Resolution
	frames stack
	known  map[string]bool
	scoped []bool
}

func key(name []string) string { return strings.Join(name, "::") }

// collect records every namespace and type name as written, so that
// qualifiers of out-of-line definitions can be checked against them.
func (r *resolver) collect(id region.ID, prefix []string) {
	for _, c := range r.tree.Children(id) {
		reg := r.tree.Get(c)
		switch reg.Kind {
		case region.Namespace:
			name := prefix
			if reg.Name != "" {
				name = join(prefix, reg.Qualifier, []string{reg.Name})
				for i := len(prefix) + 1; i <= len(name); i++ {
					r.known[key(name[:i])] = true
				}
			}
			r.collect(c, name)
		case region.Class, region.Struct, region.Union, region.Enum:
			if reg.Name == "" {
				r.collect(c, prefix)
				continue
			}
			name := join(prefix, reg.Qualifier, []string{reg.Name})
			r.known[key(name)] = true
			r.collect(c, name)
		case region.Meta:
			switch reg.Sub {
			case region.SubExternBlock:
				r.collect(c, prefix)
			case region.SubForward, region.SubTypeAlias, region.SubNamespaceAlias:
				if reg.Name != "" {
					r.known[key(join(prefix, reg.Qualifier, []string{reg.Name}))] = true
				}
			}
		}
	}
}

// qualify resolves the qualifier of an out-of-line name, trying the
// enclosing namespaces innermost first and falling back to appending the
// qualifier to the current namespace.
func (r *resolver) qualify(qual []string) []string {
	base := r.frames.namespacePrefix()
	if len(qual) == 0 {
		return r.frames.prefix()
	}
	for i := len(base); i >= 0; i-- {
		cand := join(base[:i], qual)
		if r.known[key(cand)] {
			return cand
		}
	}
	return join(base, qual)
}

func (r *resolver) walk(id region.ID) {
	for _, c := range r.tree.Children(id) {
		r.visit(c)
	}
}

func (r *resolver) visit(id region.ID) {
	reg := r.tree.Get(id)
	vis := NoVisibility
	if cls := r.frames.class(); cls != nil && reg.Parent == cls.Region {
		if reg.Kind == region.VisibilitySection {
			cls.Visibility = visibilityOf(reg.Sub)
			return
		}
		vis = cls.Visibility
		r.res.visibility[id] = vis
	}

	switch reg.Kind {
	case region.Namespace:
		name := r.frames.prefix()
		if reg.Name != "" {
			name = join(r.frames.namespacePrefix(), reg.Qualifier, []string{reg.Name})
			r.declare(name, Namespace, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
		}
		r.frames.push(ScopeFrame{Kind: NamespaceFrame, Region: id, Name: name})
		r.walk(id)
		r.frames.pop()

	case region.Class, region.Struct, region.Union:
		name := r.frames.prefix()
		if reg.Name != "" {
			name = join(r.qualify(reg.Qualifier), []string{reg.Name})
			r.declare(name, Class, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
		}
		def := Public
		if reg.Kind == region.Class {
			def = Private
		}
		r.frames.push(ScopeFrame{Kind: ClassFrame, Region: id, Name: name, Visibility: def})
		r.walk(id)
		r.frames.pop()
		r.trailer(id, reg, vis)

	case region.Enum:
		name := r.frames.prefix()
		if reg.Name != "" {
			name = join(r.qualify(reg.Qualifier), []string{reg.Name})
			r.declare(name, Enum, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
		}
		for _, c := range r.tree.Children(id) {
			e := r.tree.Get(c)
			if e.Kind == region.Statement && e.Sub == region.SubEnumerator && e.Name != "" {
				r.declare(join(name, []string{e.Name}), Enumerator, c, e.NameToken, r.scopeOf(reg.Parent), vis, false)
			}
		}
		r.trailer(id, reg, vis)

	case region.Function, region.FunctionDeclaration:
		name := join(r.qualify(reg.Qualifier), []string{reg.Name})
		r.declare(name, Function, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
		if reg.Kind == region.FunctionDeclaration {
			return
		}
		for _, tok := range r.tree.ParameterNames(reg.Params, reg.Sub == region.SubKR) {
			r.declare(join(name, []string{r.text(tok)}), Parameter, id, tok, id, NoVisibility, true)
		}
		r.frames.push(ScopeFrame{Kind: FunctionFrame, Region: id, Name: name})
		r.walk(id)
		r.frames.pop()

	case region.Statement:
		kind := Variable
		switch reg.Sub {
		case region.SubConstant:
			kind = Constant
		case region.SubTypedef:
			kind = Typedef
		case region.SubVariable:
		default:
			return
		}
		for i, tok := range reg.Declarators {
			if i == 0 && len(reg.Qualifier) > 0 {
				r.declare(join(r.qualify(reg.Qualifier), []string{r.text(tok)}), kind, id, tok, r.scopeOf(reg.Parent), vis, false)
				continue
			}
			r.declare(join(r.frames.prefix(), []string{r.text(tok)}), kind, id, tok, r.scopeOf(reg.Parent), vis, kind != Typedef)
		}

	case region.ControlStatement:
		for _, tok := range r.headerNames(reg) {
			r.declare(join(r.frames.prefix(), []string{r.text(tok)}), Variable, id, tok, id, NoVisibility, true)
		}
		r.walk(id)

	case region.Block:
		r.walk(id)

	case region.Meta:
		switch reg.Sub {
		case region.SubExternBlock:
			r.walk(id)
		case region.SubTypeAlias:
			r.declare(join(r.frames.prefix(), []string{reg.Name}), Typedef, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
		case region.SubNamespaceAlias:
			if reg.Name != "" {
				r.declare(join(r.frames.prefix(), []string{reg.Name}), Namespace, id, reg.NameToken, r.scopeOf(reg.Parent), vis, false)
			}
		}
	}
}

// trailer declares the names after the closing brace of a type.
func (r *resolver) trailer(id region.ID, reg region.Region, vis Visibility) {
	kind := Variable
	if reg.Sub == region.SubTypedef {
		kind = Typedef
	}
	for _, tok := range reg.Declarators {
		if tok == reg.NameToken {
			continue
		}
		r.declare(join(r.frames.prefix(), []string{r.text(tok)}), kind, id, tok, r.scopeOf(reg.Parent), vis, kind == Variable)
	}
}

// headerNames returns the variables declared in the header of a control
// statement.
func (r *resolver) headerNames(reg region.Region) []int {
	if reg.Params.Empty() {
		return nil
	}
	switch reg.Sub {
	case "catch":
		return r.tree.ParameterNames(reg.Params, false)
	case "for":
		return r.tree.DeclaredNames(r.tree.LoopInit(reg.Params))
	case "if", "else if", "switch", "while":
		if init := r.tree.LoopInit(reg.Params); init != reg.Params {
			return r.tree.DeclaredNames(init)
		}
		// a condition declares a name only with an initializer
		for _, i := range r.tree.Significant(reg.Params) {
			if s := r.tree.Tokens[i].Text; s == "=" || s == "{" {
				return r.tree.DeclaredNames(reg.Params)
			}
		}
	}
	return nil
}

func (r *resolver) text(tok int) string { return r.tree.Tokens[tok].Text }

// declare records a declaration. Scoped names are listed as variables of
// their scope.
func (r *resolver) declare(name []string, kind Kind, id region.ID, tok int, scope region.ID, vis Visibility, scoped bool) {
	d := Declaration{Name: name, Kind: kind, Region: id, Token: tok, Offset: -1, Scope: scope, Visibility: vis}
	if tok >= 0 && tok < len(r.tree.Tokens) {
		d.Offset = r.tree.Tokens[tok].Offset
	}
	n := len(r.res.decls)
	r.res.decls = append(r.res.decls, d)
	r.scoped = append(r.scoped, scoped)
	r.res.byRegion[id] = append(r.res.byRegion[id], n)
	if _, ok := r.res.names[id]; !ok && kind != Parameter {
		r.res.names[id] = name
	}
	if scoped {
		r.res.scopes[scope] = append(r.res.scopes[scope], n)
	}
}

// scopeOf returns the nearest region at or above id that opens a scope.
func (r *resolver) scopeOf(id region.ID) region.ID {
	return r.res.ScopeOf(id)
}

// findShadows pairs each scoped variable with the nearest variable of the
// same name declared earlier in an enclosing scope. Class scopes are
// skipped, so attributes are never reported.
func (r *resolver) findShadows() []Shadow {
	var out []Shadow
	for i, d := range r.res.decls {
		if !r.scoped[i] || r.tree.Kind(d.Scope).IsType() {
			continue
		}
	outer:
		for a := r.tree.Parent(d.Scope); a != region.NoRegion; a = r.tree.Parent(a) {
			if !isScopeKind(r.tree.Kind(a)) || r.tree.Kind(a).IsType() {
				continue
			}
			for _, j := range r.res.scopes[a] {
				o := r.res.decls[j]
				if o.Simple() == d.Simple() && o.Offset < d.Offset {
					out = append(out, Shadow{Inner: d, Outer: o})
					break outer
				}
			}
		}
	}
	return out
}

func isScopeKind(k region.Kind) bool {
	switch k {
	case region.Root, region.Namespace, region.Class, region.Struct, region.Union,
		region.Function, region.Block, region.ControlStatement:
		return true
	}
	return false
}

// ScopeOf returns the nearest region at or above id that opens a scope:
// the root, a namespace, a class, a function, a block or a control
// statement.
func (res *Resolution) ScopeOf(id region.ID) region.ID {
	for id != region.NoRegion && !isScopeKind(res.tree.Kind(id)) {
		id = res.tree.Parent(id)
	}
	if id == region.NoRegion {
		return res.tree.Root()
	}
	return id
}

// Declarations returns every declaration in tree order.
func (res *Resolution) Declarations() []Declaration {
	return append([]Declaration(nil), res.decls...)
}

// DeclaredBy returns the declarations introduced by one region.
func (res *Resolution) DeclaredBy(id region.ID) []Declaration {
	return res.pick(res.byRegion[id])
}

// QualifiedName returns the absolute name of a named region.
func (res *Resolution) QualifiedName(id region.ID) ([]string, bool) {
	n, ok := res.names[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), n...), true
}

// Lookup returns the declarations whose qualified name is name.
func (res *Resolution) Lookup(name string) []Declaration {
	var out []Declaration
	for _, d := range res.decls {
		if d.Qualified() == name {
			out = append(out, d)
		}
	}
	return out
}

// ScopeVariables returns the variables, constants and parameters declared
// directly in scope, in source order.
func (res *Resolution) ScopeVariables(scope region.ID) []Declaration {
	return res.pick(res.scopes[scope])
}

// Visibility returns the visibility of a class member region.
func (res *Resolution) Visibility(id region.ID) Visibility {
	return res.visibility[id]
}

// Shadows returns every variable that hides a variable of an enclosing
// scope.
func (res *Resolution) Shadows() []Shadow {
	return append([]Shadow(nil), res.shadows...)
}

func (res *Resolution) pick(idx []int) []Declaration {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Declaration, len(idx))
	for i, j := range idx {
		out[i] = res.decls[j]
	}
	return out
}
