// Package shallow parses one C or C++ file into a region tree with
// resolved names and a list of anomalies.
//
// A parse is a pure function of the source text and its dialect. Malformed
// input never fails: it yields a best-effort tree and anomalies. Only input
// that is not source text at all is rejected.
package shallow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/anomaly"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/grammar"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/lexer"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/query"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/region"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/resolve"
)

var (
	// ErrTooLarge is returned for files above Options.MaxBytes.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrBinary is returned for files containing NUL bytes.
	ErrBinary = errors.New("file is not source text")
)

// Input is one file to parse.
type Input struct {
	Path   string
	Source string
	// Dialect is "c" or "cpp". Empty selects by file extension.
	Dialect string
}

// Options tunes a parse. The zero value applies no limits.
type Options struct {
	Region region.Options
	// Dialects maps file extensions (".h") to a dialect, overriding the
	// built-in table.
	Dialects map[string]lexer.Dialect
	MaxBytes int
	Timeout  time.Duration
	// Grammar runs the tree-sitter cross-check.
	Grammar bool
}

// Result is the immutable outcome of a parse.
type Result struct {
	Path      string
	Dialect   lexer.Dialect
	Tree      *region.Tree
	Names     *resolve.Resolution
	Anomalies []anomaly.Anomaly
	View      *query.View
}

// Partial reports whether matching stopped early.
func (r *Result) Partial() bool { return r.Tree.Partial }

// WithPath returns a copy of r for another file with the same content and
// dialect. The tree and the names are shared.
func (r *Result) WithPath(path string) *Result {
	if path == r.Path {
		return r
	}
	out := *r
	out.Path = path
	out.Tree = r.Tree.WithFile(path)
	out.View = query.New(out.Tree, r.Names)
	return &out
}

var cExtensions = map[string]bool{".c": true}

var knownExtensions = map[string]bool{
	".c": true, ".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true,
	".cc": true, ".cpp": true, ".cxx": true, ".c++": true, ".inl": true, ".ipp": true, ".tpp": true,
}

// IsSource reports whether path has a C-family extension.
func IsSource(path string) bool {
	return knownExtensions[strings.ToLower(filepath.Ext(path))]
}

// DialectFor picks the dialect of a file: overrides first, then ".c" for
// C and C++ for everything else.
func DialectFor(path string, overrides map[string]lexer.Dialect) lexer.Dialect {
	ext := strings.ToLower(filepath.Ext(path))
	if d, ok := overrides[ext]; ok {
		return d
	}
	if cExtensions[ext] {
		return lexer.C
	}
	return lexer.CPP
}

// Parse tokenizes, matches and resolves one file.
func Parse(ctx context.Context, in Input, opts Options) (*Result, error) {
	if opts.MaxBytes > 0 && len(in.Source) > opts.MaxBytes {
		return nil, fmt.Errorf("%s: %d bytes: %w", in.Path, len(in.Source), ErrTooLarge)
	}
	if strings.IndexByte(in.Source, 0) >= 0 {
		return nil, fmt.Errorf("%s: %w", in.Path, ErrBinary)
	}

	dialect := DialectFor(in.Path, opts.Dialects)
	if in.Dialect != "" {
		d, ok := lexer.ParseDialect(in.Dialect)
		if !ok {
			return nil, fmt.Errorf("%s: unknown dialect %q", in.Path, in.Dialect)
		}
		dialect = d
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var list anomaly.List
	toks, lexed := lexer.Tokenize(in.Source, dialect)
	list.Append(lexed...)
	tree := region.Match(ctx, in.Path, in.Source, dialect, toks, opts.Region, &list)

	if opts.Grammar && !tree.Partial {
		found, err := grammar.Check(ctx, in.Source, dialect)
		if err != nil {
			list.Addf(anomaly.Grammar, 1, 1, "grammar check failed: %v", err)
		}
		list.Append(found...)
	}

	names := resolve.Resolve(tree)
	return &Result{
		Path:      in.Path,
		Dialect:   dialect,
		Tree:      tree,
		Names:     names,
		Anomalies: list.Sorted(),
		View:      query.New(tree, names),
	}, nil
}
