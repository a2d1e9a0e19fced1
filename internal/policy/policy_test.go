package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/config"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/shallow"
)

const accountSource = `class Account {
public:
    int balance;
    void deposit(int amount);
private:
    int id;
};
int total;
void f() {
    int total = 1;
}
}
`

func tablesFor(t *testing.T, thirdParty map[string]bool, files map[string]string) facts.Tables {
	t.Helper()
	var results []*shallow.Result
	for path, src := range files {
		res, err := shallow.Parse(context.Background(), shallow.Input{Path: path, Source: src}, shallow.Options{})
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		results = append(results, res)
	}
	return facts.BuildTables(results, thirdParty)
}

func newEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	engine, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func rules(res *Result) []string {
	var out []string
	for _, f := range res.Findings {
		out = append(out, f.Rule)
	}
	return out
}

func hasFinding(res *Result, rule, name string, line int) bool {
	for _, f := range res.Findings {
		if f.Rule == rule && f.Name == name && f.Line == line {
			return true
		}
	}
	return false
}

func TestBuiltInRules(t *testing.T) {
	engine := newEngine(t, nil)
	res, err := engine.Evaluate(context.Background(), tablesFor(t, nil, map[string]string{"account.cpp": accountSource}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	want := "public-data-member shadowed-variable parse-anomaly"
	if got := strings.Join(rules(res), " "); got != want {
		t.Fatalf("expected rules %q, got %q", want, got)
	}
	if !hasFinding(res, "public-data-member", "Account::balance", 3) {
		t.Fatalf("expected Account::balance to be reported, got %+v", res.Findings)
	}
	if !hasFinding(res, "shadowed-variable", "f::total", 10) {
		t.Fatalf("expected f::total to be reported, got %+v", res.Findings)
	}
	if !hasFinding(res, "parse-anomaly", "structural", 12) {
		t.Fatalf("expected the dangling brace to be reported, got %+v", res.Findings)
	}
	if res.Summary != (Summary{TotalFindings: 3, Warnings: 2, Info: 1}) {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
}

func TestConfiguredSeverities(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Policy.Rules = map[string]string{
		"public-data-member": "off",
		"shadowed-variable":  "error",
	}
	engine := newEngine(t, cfg)
	res, err := engine.Evaluate(context.Background(), tablesFor(t, nil, map[string]string{"account.cpp": accountSource}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Summary != (Summary{TotalFindings: 2, Errors: 1, Warnings: 1}) {
		t.Fatalf("unexpected summary %+v (%v)", res.Summary, rules(res))
	}
}

func TestThirdPartyAndIgnoredFilesAreSkipped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Policy.IgnorePatterns = []string{"*_gen.cpp"}
	engine := newEngine(t, cfg)

	tables := tablesFor(t, map[string]bool{"vendor/lib.cpp": true}, map[string]string{
		"vendor/lib.cpp":  accountSource,
		"out/api_gen.cpp": accountSource,
		"main.c":          "int main() { return 0; }\n",
	})
	res, err := engine.Evaluate(context.Background(), tables)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", res.Findings)
	}
}

func TestExtraModules(t *testing.T) {
	dir := t.TempDir()
	module := `package cppshallow

import rego.v1

findings contains {
	"rule": "global-variable",
	"severity": "warning",
	"file": d.file,
	"line": d.line,
	"name": d.qualified,
	"message": sprintf("%s is a global variable", [d.qualified]),
} if {
	some d in input.declarations
	d.kind == "variable"
	d.scope == 0
}
`
	path := filepath.Join(dir, "globals.rego")
	if err := os.WriteFile(path, []byte(module), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Policy.Modules = []string{path}
	engine := newEngine(t, cfg)
	res, err := engine.Evaluate(context.Background(), tablesFor(t, nil, map[string]string{"account.cpp": accountSource}))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !hasFinding(res, "global-variable", "total", 8) {
		t.Fatalf("expected the global to be reported, got %+v", res.Findings)
	}
	if hasFinding(res, "global-variable", "f::total", 10) {
		t.Fatalf("expected locals not to be reported")
	}
}

func TestInvalidRuleOutputIsRejected(t *testing.T) {
	dir := t.TempDir()
	module := `package cppshallow

import rego.v1

findings contains {"rule": "bad", "severity": "fatal", "file": f.path, "line": 1, "name": "", "message": "x"} if {
	some f in input.files
}
`
	path := filepath.Join(dir, "bad.rego")
	if err := os.WriteFile(path, []byte(module), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Policy.Modules = []string{path}
	engine := newEngine(t, cfg)
	if _, err := engine.Evaluate(context.Background(), tablesFor(t, nil, map[string]string{"a.c": "int a;\n"})); err == nil {
		t.Fatalf("expected an unknown severity to fail the output contract")
	}
}

func TestPartialParse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := shallow.Parse(ctx, shallow.Input{Path: "a.cpp", Source: "int a;\n"}, shallow.Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	engine := newEngine(t, nil)
	out, err := engine.Evaluate(context.Background(), facts.BuildTables([]*shallow.Result{res}, nil))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !hasFinding(out, "partial-parse", "a.cpp", 0) || out.Summary.Errors != 2 {
		t.Fatalf("expected the partial parse and the cancellation as errors, got %+v", out.Findings)
	}
}

func TestEmptyTables(t *testing.T) {
	engine := newEngine(t, nil)
	res, err := engine.Evaluate(context.Background(), facts.Tables{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Findings == nil || len(res.Findings) != 0 {
		t.Fatalf("expected an empty, non-nil finding list, got %#v", res.Findings)
	}
}
