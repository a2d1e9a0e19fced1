package policy

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/config"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/validator"
)

//go:embed rules/*.rego
var rulesFS embed.FS

const findingsQuery = "data.cppshallow.findings"

// Engine evaluates rego rules against the fact tables of a set of files
type Engine struct {
	query  rego.PreparedEvalQuery
	cfg    *config.Config
	facts  *validator.Validator
	output *validator.OutputValidator
}

// Finding is one rule hit
type Finding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalFindings int `json:"total_findings"`
	Errors        int `json:"errors"`
	Warnings      int `json:"warnings"`
	Info          int `json:"info"`
}

// New prepares the built-in rules plus the modules listed in
// cfg.Policy.Modules. Extra modules add to data.cppshallow.findings.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var modules []func(*rego.Rego)
	builtins, err := rulesFS.ReadDir("rules")
	if err != nil {
		return nil, fmt.Errorf("listing built-in rules: %w", err)
	}
	for _, entry := range builtins {
		name := "rules/" + entry.Name()
		content, err := rulesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		modules = append(modules, rego.Module(name, string(content)))
	}
	for _, f := range cfg.Policy.Modules {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		modules = append(modules, rego.Module(f, string(content)))
	}

	opts := append(modules, rego.Query(findingsQuery))
	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing findings query: %w", err)
	}

	factsValidator, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("init facts validator: %w", err)
	}
	outputValidator, err := validator.NewOutputValidator()
	if err != nil {
		return nil, fmt.Errorf("init output validator: %w", err)
	}

	return &Engine{
		query:  query,
		cfg:    cfg,
		facts:  factsValidator,
		output: outputValidator,
	}, nil
}

// Evaluate runs the rules against the tables. Rows of third-party files
// and ignored files are dropped first; rule severities follow the config.
func (e *Engine) Evaluate(ctx context.Context, tables facts.Tables) (*Result, error) {
	tables = facts.Normalize(tables)
	if err := e.facts.Validate(tables); err != nil {
		return nil, fmt.Errorf("fact tables invalid: %w", err)
	}

	tables = e.scope(tables)

	inputMap, err := structToMap(tables)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating findings: %w", err)
	}

	result := &Result{Findings: []Finding{}}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		rows, _ := rs[0].Expressions[0].Value.([]interface{})
		for _, row := range rows {
			fmap, ok := row.(map[string]interface{})
			if !ok {
				continue
			}
			f := Finding{
				Rule:     getString(fmap, "rule"),
				Severity: getString(fmap, "severity"),
				File:     getString(fmap, "file"),
				Line:     getInt(fmap, "line"),
				Name:     getString(fmap, "name"),
				Message:  getString(fmap, "message"),
			}
			if !e.cfg.IsRuleEnabled(f.Rule) {
				continue
			}
			f.Severity = e.cfg.GetRuleSeverity(f.Rule, f.Severity)
			result.Findings = append(result.Findings, f)
		}
	}

	sort.Slice(result.Findings, func(i, j int) bool {
		a, b := result.Findings[i], result.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Name < b.Name
	})
	result.Summary = summarize(result.Findings)

	if err := e.output.Validate(result); err != nil {
		return nil, fmt.Errorf("rule output invalid: %w", err)
	}
	return result, nil
}

func (e *Engine) scope(tables facts.Tables) facts.Tables {
	tables = facts.WithoutThirdParty(tables)
	keep := make(map[string]bool, len(tables.Files))
	for _, f := range tables.Files {
		if !e.cfg.IsThirdPartyFile(f.Path) && !e.cfg.ShouldIgnoreFile(f.Path) {
			keep[f.Path] = true
		}
	}
	return facts.FilterTablesByFiles(tables, keep)
}

func summarize(findings []Finding) Summary {
	s := Summary{TotalFindings: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case "error":
			s.Errors++
		case "warning":
			s.Warnings++
		case "info":
			s.Info++
		}
	}
	return s
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
