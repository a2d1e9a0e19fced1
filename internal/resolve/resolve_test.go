package resolve

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
)

func resolveSource(t *testing.T, src string, d lexer.Dialect) (*region.Tree, *Resolution) {
	t.Helper()
	toks, _ := lexer.Tokenize(src, d)
	tree := region.Match(context.Background(), "test", src, d, toks, region.Options{}, &anomaly.List{})
	if err := tree.Verify(); err != nil {
		t.Fatalf("invalid tree: %v", err)
	}
	return tree, Resolve(tree)
}

func mustLookup(t *testing.T, res *Resolution, name string, kind Kind) Declaration {
	t.Helper()
	for _, d := range res.Lookup(name) {
		if d.Kind == kind {
			return d
		}
	}
	var all []string
	for _, d := range res.Declarations() {
		all = append(all, d.Kind.String()+" "+d.Qualified())
	}
	t.Fatalf("expected %s %q among %v", kind, name, all)
	return Declaration{}
}

func TestLocalsShadowGlobals(t *testing.T) {
	src := `int count;
int total = 0;
void f(int total) {
    int count = 1;
    for (int i = 0; i < 3; ++i) {
        int count = 2;
    }
}
int i;
`
	tree, res := resolveSource(t, src, lexer.C)
	mustLookup(t, res, "f::total", Parameter)
	loop := mustLookup(t, res, "f::i", Variable)
	if tree.Kind(loop.Scope) != region.ControlStatement {
		t.Fatalf("expected the loop variable in the loop scope, got %s", tree.Kind(loop.Scope))
	}

	var got []string
	for _, s := range res.Shadows() {
		got = append(got, s.Inner.Qualified()+"->"+s.Outer.Qualified())
		if s.Outer.Offset >= s.Inner.Offset {
			t.Fatalf("expected the outer declaration to come first: %+v", s)
		}
	}
	want := []string{"f::total->total", "f::count->count", "f::count->f::count"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("expected shadows %v, got %v", want, got)
	}
}

func TestStructuredBindingsInRangeFor(t *testing.T) {
	src := `int a;
void f(Pairs m) {
    for (const auto& [a, b] : m) {
        use(a, b);
    }
    for (auto [k, v] : m) {}
}
`
	tree, res := resolveSource(t, src, lexer.CPP)
	for _, name := range []string{"f::a", "f::b", "f::k", "f::v"} {
		d := mustLookup(t, res, name, Variable)
		if tree.Kind(d.Scope) != region.ControlStatement {
			t.Fatalf("expected %s in the loop scope, got %s", name, tree.Kind(d.Scope))
		}
	}
	for _, d := range res.Declarations() {
		if d.Simple() == "m" && d.Kind != Parameter {
			t.Fatalf("expected the range expression not to be declared, got %s %s", d.Kind, d.Qualified())
		}
	}

	var got []string
	for _, s := range res.Shadows() {
		got = append(got, s.Inner.Qualified()+"->"+s.Outer.Qualified())
	}
	if strings.Join(got, " ") != "f::a->a" {
		t.Fatalf("expected the binding to shadow the global, got %v", got)
	}
}

func TestOutOfLineQualification(t *testing.T) {
	src := `namespace ns {
class A {
public:
    void m();
    class Inner {};
};
}
void ns::A::m() { int local; }
namespace ns {
void A::m2() {}
void X::y() {}
}
`
	tree, res := resolveSource(t, src, lexer.CPP)
	mustLookup(t, res, "ns::A", Class)
	mustLookup(t, res, "ns::A::Inner", Class)
	mustLookup(t, res, "ns::A::m2", Function)
	mustLookup(t, res, "ns::X::y", Function)
	mustLookup(t, res, "ns::A::m::local", Variable)
	if n := len(res.Lookup("ns::A::m")); n != 2 {
		t.Fatalf("expected declaration and definition of ns::A::m, got %d", n)
	}
	for _, d := range res.Lookup("ns::A::m") {
		name, ok := res.QualifiedName(d.Region)
		if !ok || strings.Join(name, "::") != "ns::A::m" {
			t.Fatalf("expected region name ns::A::m, got %v", name)
		}
		if r := tree.Get(d.Region); r.Kind == region.Function && tree.Parent(d.Region) != tree.Root() {
			t.Fatalf("expected the definition at top level")
		}
	}
}

func TestMemberVisibility(t *testing.T) {
	src := `class C {
    int a;
public:
    int b;
protected:
    void f();
signals:
    void changed();
};
struct S { int c; };
`
	_, res := resolveSource(t, src, lexer.CPP)
	cases := map[string]Visibility{
		"C::a":       Private,
		"C::b":       Public,
		"C::f":       Protected,
		"C::changed": Public,
		"S::c":       Public,
	}
	for name, want := range cases {
		d := res.Lookup(name)
		if len(d) != 1 {
			t.Fatalf("expected one declaration of %s, got %d", name, len(d))
		}
		if d[0].Visibility != want || res.Visibility(d[0].Region) != want {
			t.Fatalf("expected %s to be %s, got %s", name, want, d[0].Visibility)
		}
	}
}

func TestEnumeratorNames(t *testing.T) {
	src := `namespace n {
enum Color { RED };
enum { LOOSE };
}
`
	_, res := resolveSource(t, src, lexer.CPP)
	mustLookup(t, res, "n::Color", Enum)
	mustLookup(t, res, "n::Color::RED", Enumerator)
	mustLookup(t, res, "n::LOOSE", Enumerator)
}

func TestHeaderDeclarations(t *testing.T) {
	src := `void h(int bar) {
    for (bar = 3; bar < 5; bar++) {}
    try { } catch (const Error& e) { }
    if (int r = get()) { }
    if (a * b) { }
}
`
	tree, res := resolveSource(t, src, lexer.CPP)
	var names []string
	for _, d := range res.Declarations() {
		if tree.Kind(d.Scope) == region.ControlStatement {
			names = append(names, d.Simple())
		}
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "e,r" {
		t.Fatalf("expected e and r in control scopes, got %v", names)
	}
	if len(res.Shadows()) != 0 {
		t.Fatalf("expected no shadows, got %v", res.Shadows())
	}
}

func TestAttributesAreNotShadowed(t *testing.T) {
	src := `class K {
    int v;
    void g() { int v = 1; }
};
`
	_, res := resolveSource(t, src, lexer.CPP)
	mustLookup(t, res, "K::g::v", Variable)
	if len(res.Shadows()) != 0 {
		t.Fatalf("expected class attributes to be ignored, got %v", res.Shadows())
	}
}

func TestTypedefStructs(t *testing.T) {
	src := `typedef struct { int x; } Point;
typedef struct tag { int y; } Tag;
typedef unsigned long size;
`
	_, res := resolveSource(t, src, lexer.C)
	mustLookup(t, res, "Point", Class)
	mustLookup(t, res, "Point::x", Variable)
	mustLookup(t, res, "tag", Class)
	mustLookup(t, res, "Tag", Typedef)
	mustLookup(t, res, "size", Typedef)
	if len(res.Lookup("Point")) != 1 {
		t.Fatalf("expected Point declared once")
	}
}

func TestScopeVariables(t *testing.T) {
	src := "int a, b;\nvoid f(int p) { int c; }\n"
	tree, res := resolveSource(t, src, lexer.C)
	var got []string
	for _, d := range res.ScopeVariables(tree.Root()) {
		got = append(got, d.Qualified())
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("expected a,b at file scope, got %v", got)
	}
	fn := res.Lookup("f")[0].Region
	got = nil
	for _, d := range res.ScopeVariables(fn) {
		got = append(got, d.Kind.String()+":"+d.Simple())
	}
	if strings.Join(got, ",") != "parameter:p,variable:c" {
		t.Fatalf("expected p then c in f, got %v", got)
	}
}
