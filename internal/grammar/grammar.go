// Package grammar cross-checks a file against the tree-sitter C and C++
// grammars. The shallow matcher accepts much that does not compile; the
// syntax errors found here are reported as grammar anomalies next to it.
package grammar

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
)

// maxReported bounds the anomalies of one file; a file in the wrong
// dialect produces an error node for nearly every line.
const maxReported = 50

// Checker holds a tree-sitter parser. It is not safe for concurrent use.
type Checker struct {
	parser  *sitter.Parser
	dialect lexer.Dialect
}

// Language returns the tree-sitter grammar for a dialect.
func Language(d lexer.Dialect) *sitter.Language {
	if d == lexer.CPP {
		return cpp.GetLanguage()
	}
	return c.GetLanguage()
}

// New creates a checker for one dialect.
func New(d lexer.Dialect) *Checker {
	parser := sitter.NewParser()
	parser.SetLanguage(Language(d))
	return &Checker{parser: parser, dialect: d}
}

// Close releases the parser.
func (ch *Checker) Close() {
	ch.parser.Close()
}

// Check parses src and returns one anomaly per ERROR or MISSING node.
func (ch *Checker) Check(ctx context.Context, src string) ([]anomaly.Anomaly, error) {
	content := []byte(src)
	tree, err := ch.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ch.dialect, err)
	}
	defer tree.Close()

	var out []anomaly.Anomaly
	ch.walk(tree.RootNode(), content, &out)
	return out, nil
}

func (ch *Checker) walk(node *sitter.Node, source []byte, out *[]anomaly.Anomaly) {
	if node == nil || len(*out) >= maxReported {
		return
	}
	pos := node.StartPoint()
	switch {
	case node.IsMissing():
		*out = append(*out, anomaly.Anomaly{
			Kind:    anomaly.Grammar,
			Line:    int(pos.Row) + 1,
			Column:  int(pos.Column) + 1,
			Message: fmt.Sprintf("missing %s", node.Type()),
		})
		return
	case node.IsError():
		*out = append(*out, anomaly.Anomaly{
			Kind:    anomaly.Grammar,
			Line:    int(pos.Row) + 1,
			Column:  int(pos.Column) + 1,
			Message: fmt.Sprintf("syntax error near %q", excerpt(node.Content(source))),
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		ch.walk(node.Child(i), source, out)
	}
}

// excerpt keeps the first line of an error node, shortened.
func excerpt(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}

// Check runs a one-off checker.
func Check(ctx context.Context, src string, d lexer.Dialect) ([]anomaly.Anomaly, error) {
	ch := New(d)
	defer ch.Close()
	return ch.Check(ctx, src)
}
