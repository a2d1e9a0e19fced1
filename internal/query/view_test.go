package query

import (
	"context"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/resolve"
)

func view(t *testing.T, src string, d lexer.Dialect) *View {
	t.Helper()
	toks, _ := lexer.Tokenize(src, d)
	tree := region.Match(context.Background(), "test", src, d, toks, region.Options{}, &anomaly.List{})
	return New(tree, nil)
}

const widget = `namespace ui {
class Widget {
    int id;
public:
    Widget(int i)
        : id(i)
    {
    }
    void draw();
};
}
`

func TestOfKindAndQualifiedName(t *testing.T) {
	v := view(t, widget, lexer.CPP)
	var names []string
	for id := range v.OfKind(region.Class, region.Function, region.FunctionDeclaration) {
		name, ok := v.QualifiedName(id)
		if !ok {
			t.Fatalf("expected a name for %s", v.Region(id).Kind)
		}
		names = append(names, name)
	}
	want := "ui::Widget,ui::Widget::Widget,ui::Widget::draw"
	if strings.Join(names, ",") != want {
		t.Fatalf("expected %s, got %v", want, names)
	}
	if _, ok := v.QualifiedName(v.Root()); ok {
		t.Fatalf("expected the root to have no name")
	}
}

func TestOfKindStopsEarly(t *testing.T) {
	v := view(t, widget, lexer.CPP)
	n := 0
	for range v.OfKind(region.Namespace, region.Class, region.Function) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected to stop after one region, got %d", n)
	}
}

func TestMembersCarryVisibility(t *testing.T) {
	v := view(t, widget, lexer.CPP)
	var class region.ID = region.NoRegion
	for id := range v.OfKind(region.Class) {
		class = id
	}
	members := v.Members(class)
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	want := []resolve.Visibility{resolve.Private, resolve.Public, resolve.Public}
	for i, m := range members {
		if m.Visibility != want[i] {
			t.Fatalf("expected member %d to be %s, got %s", i, want[i], m.Visibility)
		}
	}
	if v.Members(v.Root()) != nil {
		t.Fatalf("expected no members outside classes")
	}
}

func TestHeaderAndInitializerTokens(t *testing.T) {
	v := view(t, widget, lexer.CPP)
	var ctor region.ID = region.NoRegion
	for id := range v.OfKind(region.Function) {
		ctor = id
	}
	init := v.InitializerTokens(ctor)
	if len(init) == 0 || init[0].Text != ":" {
		t.Fatalf("expected the initializer list to start with ':', got %v", init)
	}
	if got := v.SpanText(v.InitializerSpan(ctor)); got != ": id(i)" {
		t.Fatalf("expected initializer text, got %q", got)
	}
	header := v.HeaderTokens(ctor)
	if header[0].Text != "Widget" || header[len(header)-1].Text != ")" {
		t.Fatalf("expected header from name to the initializer, got %q", v.SpanText(v.HeaderSpan(ctor)))
	}
	// whitespace is kept for layout checks
	if init[0].Line != 6 || init[0].Column != 9 {
		t.Fatalf("expected ':' at 6:9, got %d:%d", init[0].Line, init[0].Column)
	}
}

func TestShadowsThroughView(t *testing.T) {
	v := view(t, "int foo = 5;\nvoid test() { int foo = 3; }\n", lexer.C)
	foos := v.Lookup("foo")
	if len(foos) != 1 || len(v.Lookup("test::foo")) != 1 {
		t.Fatalf("expected two distinct foo declarations")
	}
	shadows := v.Shadows()
	if len(shadows) != 1 || shadows[0].Outer.Scope != v.Root() {
		t.Fatalf("expected the local foo to shadow the global, got %v", shadows)
	}
	if got := v.ScopeVariables(shadows[0].Inner.Scope); len(got) != 1 {
		t.Fatalf("expected one variable in test, got %v", got)
	}
}

func TestLoopAssignmentIsNotADeclaration(t *testing.T) {
	v := view(t, "void f() {\n    int bar;\n    for (bar = 3; bar < 4; ++bar) {}\n    for (int bar = 3; bar < 4; ++bar) {}\n}\n", lexer.C)
	loops := 0
	for id := range v.OfKind(region.ControlStatement) {
		loops++
		vars := v.ScopeVariables(id)
		if loops == 1 && len(vars) != 0 {
			t.Fatalf("expected no declaration in the first loop, got %v", vars)
		}
		if loops == 2 && len(vars) != 1 {
			t.Fatalf("expected bar declared in the second loop, got %v", vars)
		}
	}
	if len(v.Shadows()) != 1 {
		t.Fatalf("expected only the second loop to shadow, got %v", v.Shadows())
	}
}
