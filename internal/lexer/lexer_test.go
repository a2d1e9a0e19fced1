package lexer

import (
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
)

func TestTokenizeIsLossless(t *testing.T) {
	inputs := []string{
		"int main() { return 0; }\n",
		"#include <stdio.h>\r\n#define MAX(a, b) \\\n  ((a) > (b) ? (a) : (b))\nint x = MAX(1, 2);\n",
		"/* open comment\nint x;",
		"const char *s = \"unterminated\nint y;\n",
		"auto r = R\"xy(raw \" ) string)xy\"; auto w = L'\\n';",
		"x->*y <=> z; a <<= 1'000; b... ; ::std::vector<int> v;\t\f\v",
		"caf\xc3\xa9 = '\\'';@`\\",
		"",
	}
	for _, dialect := range []Dialect{C, CPP} {
		for _, in := range inputs {
			toks, _ := Tokenize(in, dialect)
			var b strings.Builder
			prevEnd := 0
			for _, tok := range toks {
				if tok.Offset != prevEnd {
					t.Fatalf("gap before %v in %q", tok, in)
				}
				if tok.End-tok.Offset != len(tok.Text) || tok.Text == "" {
					t.Fatalf("bad span for %v", tok)
				}
				prevEnd = tok.End
				b.WriteString(tok.Text)
			}
			if b.String() != in {
				t.Fatalf("round trip failed for %q (%s): got %q", in, dialect, b.String())
			}
		}
	}
}

func TestTokenKinds(t *testing.T) {
	src := "class Foo : public Bar { int x; };"
	want := []struct {
		kind Kind
		text string
	}{
		{Keyword, "class"},
		{Identifier, "Foo"},
		{Punctuation, ":"},
		{Keyword, "public"},
		{Identifier, "Bar"},
		{Punctuation, "{"},
		{Keyword, "int"},
		{Identifier, "x"},
		{Punctuation, ";"},
		{Punctuation, "}"},
		{Punctuation, ";"},
	}
	got := significant(src, CPP)
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Kind != w.kind || got[i].Text != w.text {
			t.Fatalf("token %d: expected %s %q, got %v", i, w.kind, w.text, got[i])
		}
	}
}

func TestDialectKeywords(t *testing.T) {
	c := significant("class namespace_t new;", C)
	if c[0].Kind != Identifier || c[2].Kind != Identifier {
		t.Fatalf("expected class/new to be identifiers in C, got %v", c)
	}
	cpp := significant("class X; new", CPP)
	if cpp[0].Kind != Keyword || cpp[3].Kind != Keyword {
		t.Fatalf("expected class/new to be keywords in C++, got %v", cpp)
	}
}

func TestOperatorsLongestMatch(t *testing.T) {
	cases := []struct {
		src     string
		dialect Dialect
		want    []string
	}{
		{"a>>=b", CPP, []string{"a", ">>=", "b"}},
		{"p->m", C, []string{"p", "->", "m"}},
		{"p->*m", CPP, []string{"p", "->*", "m"}},
		{"p->*m", C, []string{"p", "->", "*", "m"}},
		{"A::B", CPP, []string{"A", "::", "B"}},
		{"A::B", C, []string{"A", ":", ":", "B"}},
		{"a<=>b", CPP, []string{"a", "<=>", "b"}},
		{"x+++y", C, []string{"x", "++", "+", "y"}},
		{"f(...)", C, []string{"f", "(", "...", ")"}},
		{"a&&b||!c", C, []string{"a", "&&", "b", "||", "!", "c"}},
	}
	for _, tc := range cases {
		got := texts(significant(tc.src, tc.dialect))
		if strings.Join(got, " ") != strings.Join(tc.want, " ") {
			t.Fatalf("%q (%s): expected %v, got %v", tc.src, tc.dialect, tc.want, got)
		}
	}
}

func TestLiteralsHideDelimiters(t *testing.T) {
	src := `s = "{ \" ( }"; c = '}'; w = L"}"; u = u8"{"; r = R"d(})d"; n = 0x1p-3 + 1'000'000 + .5e+3f;`
	toks := significant(src, CPP)
	for _, tok := range toks {
		if tok.Kind == Punctuation && (tok.Text == "{" || tok.Text == "}") {
			t.Fatalf("brace leaked out of literal: %v", tok)
		}
	}
	lits := 0
	for _, tok := range toks {
		if tok.Kind == Literal {
			lits++
		}
	}
	if lits != 8 {
		t.Fatalf("expected 8 literals, got %d: %v", lits, toks)
	}
	if toks[len(toks)-2].Text != ".5e+3f" || toks[len(toks)-2].Literal != Number {
		t.Fatalf("expected float literal, got %v", toks[len(toks)-2])
	}
}

func TestCommentsInsideHeader(t *testing.T) {
	src := "void f(int a /* first */, // trailing\n int b) /* before brace */ {}"
	toks := significant(src, C)
	got := strings.Join(texts(toks), " ")
	if got != "void f ( int a , int b ) { }" {
		t.Fatalf("unexpected significant tokens: %q", got)
	}
	all, _ := Tokenize(src, C)
	comments := 0
	for _, tok := range all {
		if tok.Kind == Comment {
			comments++
		}
	}
	if comments != 3 {
		t.Fatalf("expected 3 comments, got %d", comments)
	}
}

func TestPreprocessorDirectives(t *testing.T) {
	src := "  #  define LONG(x) \\\n   { x }\n#include \"a{.h\" // c\nint a; # not a directive\n#error don't\n"
	toks, anomalies := Tokenize(src, CPP)
	var dirs []Token
	for _, tok := range toks {
		if tok.Kind == Preprocessor {
			dirs = append(dirs, tok)
		}
	}
	if len(dirs) != 3 {
		t.Fatalf("expected 3 directives, got %d: %v", len(dirs), dirs)
	}
	if dirs[0].DirectiveName() != "define" || !strings.HasSuffix(dirs[0].Text, "{ x }") {
		t.Fatalf("expected multi-line define, got %q", dirs[0].Text)
	}
	if dirs[0].Line != 1 || dirs[0].Column != 3 {
		t.Fatalf("expected define at 1:3, got %d:%d", dirs[0].Line, dirs[0].Column)
	}
	if dirs[1].DirectiveName() != "include" || dirs[1].Line != 3 {
		t.Fatalf("expected include on line 3, got %v", dirs[1])
	}
	if dirs[2].DirectiveName() != "error" {
		t.Fatalf("expected error directive, got %v", dirs[2])
	}
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", anomalies)
	}
	for _, tok := range toks {
		if tok.Kind == Punctuation && tok.Text == "{" {
			t.Fatalf("directive body leaked a brace: %v", tok)
		}
	}
}

func TestUnterminatedLiteralsAreAnomalies(t *testing.T) {
	src := "char *s = \"abc;\nint x = 'y;\n/* never closed"
	toks, anomalies := Tokenize(src, C)
	if len(anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %v", anomalies)
	}
	for _, a := range anomalies {
		if a.Kind != anomaly.Lexical {
			t.Fatalf("expected lexical anomaly, got %v", a)
		}
	}
	if anomalies[0].Line != 1 || anomalies[0].Column != 11 {
		t.Fatalf("expected string anomaly at 1:11, got %v", anomalies[0])
	}
	if anomalies[2].Line != 3 {
		t.Fatalf("expected comment anomaly on line 3, got %v", anomalies[2])
	}
	// the string stops at the newline so the next line still lexes
	found := false
	for _, tok := range toks {
		if tok.Text == "x" && tok.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected identifier x on line 2")
	}
	last := toks[len(toks)-1]
	if last.Kind != Comment || last.End != len(src) {
		t.Fatalf("expected comment to run to EOF, got %v", last)
	}
}

func TestPositions(t *testing.T) {
	src := "a\n  bb\r\n\tc /* x\ny */ d"
	toks := significant(src, C)
	want := [][2]int{{1, 1}, {2, 3}, {3, 2}, {4, 6}}
	for i, w := range want {
		if toks[i].Line != w[0] || toks[i].Column != w[1] {
			t.Fatalf("token %v: expected %d:%d", toks[i], w[0], w[1])
		}
	}
}

func TestCarriageReturnLineEndings(t *testing.T) {
	src := "int a;\rint b; // c\rd\r\n  e \\\rf"
	toks := significant(src, C)
	want := []struct {
		text      string
		line, col int
	}{
		{"int", 1, 1}, {"a", 1, 5}, {";", 1, 6},
		{"int", 2, 1}, {"b", 2, 5}, {";", 2, 6},
		{"d", 3, 1}, {"e", 4, 3}, {"f", 5, 1},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d significant tokens, got %v", len(want), toks)
	}
	for i, w := range want {
		if toks[i].Text != w.text || toks[i].Line != w.line || toks[i].Column != w.col {
			t.Fatalf("token %d: expected %q at %d:%d, got %v", i, w.text, w.line, w.col, toks[i])
		}
	}
}

func TestScanIsRestartable(t *testing.T) {
	seq := Scan("int a; int b;", C)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for tok := range seq {
		second++
		if tok.Text == "a" {
			break
		}
	}
	if first != 9 || second != 3 {
		t.Fatalf("expected 9 tokens then an early stop at 3, got %d and %d", first, second)
	}
}

func TestNextAfterEOF(t *testing.T) {
	l := New("x", C)
	if tok := l.Next(); tok.Text != "x" {
		t.Fatalf("expected x, got %v", tok)
	}
	for i := 0; i < 2; i++ {
		if tok := l.Next(); tok.Kind != EOF || tok.Offset != 1 {
			t.Fatalf("expected EOF at offset 1, got %v", tok)
		}
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"c": C, "C++": CPP, " cpp ": CPP, "cxx": CPP} {
		got, ok := ParseDialect(in)
		if !ok || got != want {
			t.Fatalf("ParseDialect(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseDialect("vhdl"); ok {
		t.Fatalf("expected vhdl to be rejected")
	}
}

func significant(src string, d Dialect) []Token {
	var out []Token
	for tok := range Scan(src, d) {
		if tok.Kind.Trivia() {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}
