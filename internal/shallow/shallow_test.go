package shallow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]lexer.Dialect{
		"a.c":     lexer.C,
		"dir/A.C": lexer.C,
		"a.h":     lexer.CPP,
		"a.cpp":   lexer.CPP,
		"a.hpp":   lexer.CPP,
		"noext":   lexer.CPP,
	}
	for path, want := range cases {
		if got := DialectFor(path, nil); got != want {
			t.Fatalf("expected %s for %s, got %s", want, path, got)
		}
	}
	if got := DialectFor("a.h", map[string]lexer.Dialect{".h": lexer.C}); got != lexer.C {
		t.Fatalf("expected override to select C, got %s", got)
	}
	if !IsSource("x.cc") || IsSource("x.go") {
		t.Fatalf("unexpected source extension check")
	}
}

func TestParseProducesTreeNamesAndAnomalies(t *testing.T) {
	src := "int foo = 5;\nvoid test() { int foo = 3; }\n}\n"
	res, err := Parse(context.Background(), Input{Path: "x.c", Source: src}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dialect != lexer.C {
		t.Fatalf("expected C for a .c file")
	}
	if err := res.Tree.Verify(); err != nil {
		t.Fatalf("invalid tree: %v", err)
	}
	if len(res.Anomalies) != 1 || res.Anomalies[0].Kind != anomaly.Structural || res.Anomalies[0].Line != 3 {
		t.Fatalf("expected one structural anomaly on line 3, got %v", res.Anomalies)
	}
	if len(res.View.Shadows()) != 1 {
		t.Fatalf("expected the shadow to resolve despite the stray brace")
	}
	if _, ok := res.View.QualifiedName(res.View.Children(res.View.Root())[1]); !ok {
		t.Fatalf("expected test to have a qualified name")
	}
}

func TestParseRejectsNonText(t *testing.T) {
	_, err := Parse(context.Background(), Input{Path: "x.c", Source: "int\x00x;"}, Options{})
	if !errors.Is(err, ErrBinary) {
		t.Fatalf("expected ErrBinary, got %v", err)
	}
	_, err = Parse(context.Background(), Input{Path: "x.c", Source: strings.Repeat("int x;\n", 10)}, Options{MaxBytes: 16})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	_, err = Parse(context.Background(), Input{Path: "x.c", Source: "int x;", Dialect: "pascal"}, Options{})
	if err == nil {
		t.Fatalf("expected an unknown dialect error")
	}
}

func TestExplicitDialect(t *testing.T) {
	res, err := Parse(context.Background(), Input{Path: "x.h", Source: "int class;\n", Dialect: "c"}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dialect != lexer.C || len(res.View.Lookup("class")) != 1 {
		t.Fatalf("expected class to be an identifier in C")
	}
}

func TestCancelledParseIsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Parse(ctx, Input{Path: "x.cpp", Source: "int a;\n"}, Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if !res.Partial() {
		t.Fatalf("expected a partial result")
	}
	found := false
	for _, a := range res.Anomalies {
		found = found || a.Kind == anomaly.Cancelled
	}
	if !found {
		t.Fatalf("expected a cancelled anomaly, got %v", res.Anomalies)
	}
}

func TestGrammarCrossCheck(t *testing.T) {
	src := "int f( { return 0; }\n"
	res, err := Parse(context.Background(), Input{Path: "x.c", Source: src}, Options{Grammar: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grammar := 0
	for _, a := range res.Anomalies {
		if a.Kind == anomaly.Grammar {
			grammar++
		}
	}
	if grammar == 0 {
		t.Fatalf("expected grammar anomalies, got %v", res.Anomalies)
	}
	if res.Tree.Len() < 2 || res.Tree.Kind(res.Tree.Children(res.Tree.Root())[0]) == region.Root {
		t.Fatalf("expected the shallow tree to be built as well")
	}
}
