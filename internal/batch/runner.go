// Package batch parses many files in parallel. Each file is isolated: a
// failure, panic or deadline on one file is recorded in its outcome and the
// rest of the run continues.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/config"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
	"github.com/robert-at-pretension-io/cpp-shallow/internal/shallow"
)

// Runner drives a batch of parses for one project root.
type Runner struct {
	// Logger receives batch.start, batch.file and batch.done events.
	Logger *slog.Logger
	// TimingPath enables the JSONL timing output. Empty falls back to
	// $CPP_SHALLOW_TIMING_JSONL.
	TimingPath string

	cfg     *config.Config
	root    string
	opts    shallow.Options
	workers int
	cache   *factsCache
}

// FileOutcome is the result for one input file. Result is nil when the
// facts came from the disk cache or when Err is set.
type FileOutcome struct {
	Path     string
	Result   *shallow.Result
	Facts    facts.Tables
	Err      error
	Cached   bool
	Duration time.Duration
}

// Report collects the outcomes of one run in input order.
type Report struct {
	Files     []FileOutcome
	Elapsed   time.Duration
	Parsed    int
	CacheHits int
	Failed    int
}

// Tables merges the fact tables of every successful file.
func (r *Report) Tables() facts.Tables {
	parts := make([]facts.Tables, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Err == nil {
			parts = append(parts, f.Facts)
		}
	}
	return facts.Merge(parts...)
}

// Results returns the parse results of the files parsed in this run.
func (r *Report) Results() []*shallow.Result {
	var out []*shallow.Result
	for _, f := range r.Files {
		if f.Result != nil {
			out = append(out, f.Result)
		}
	}
	return out
}

// NewRunner prepares a runner. A nil cfg uses the defaults.
func NewRunner(cfg *config.Config, root string) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts, err := cfg.ParseOptions()
	if err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}

	workers := cfg.Analysis.MaxParallelFiles
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	r := &Runner{
		Logger:  slog.New(slog.DiscardHandler),
		cfg:     cfg,
		root:    root,
		opts:    opts,
		workers: workers,
	}
	if cfg.CacheEnabled() {
		optionsHash, err := hashOptions(opts)
		if err != nil {
			return nil, err
		}
		r.cache = newFactsCache(cfg.CacheDir(root), optionsHash)
	}
	return r, nil
}

// RunProject parses every file the configuration selects under the root.
func (r *Runner) RunProject(ctx context.Context) (*Report, error) {
	files, err := r.cfg.ResolveFiles(r.root)
	if err != nil {
		return nil, fmt.Errorf("resolving files: %w", err)
	}
	return r.Run(ctx, files)
}

type memoKey struct {
	dialect string
	hash    string
}

// run holds the per-run state shared by the workers.
type run struct {
	*Runner
	timing *timingRecorder
	group  singleflight.Group
	mu     sync.Mutex
	memo   map[memoKey]*shallow.Result
}

// Run parses the given files. Paths under the root are reported relative
// to it. The returned error covers only run-level problems such as an
// unreadable cache index; per-file failures are in the outcomes.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	timing := newTimingRecorder(start, resolveTimingPath(r.TimingPath))
	defer timing.Close()
	if err := timing.Err(); err != nil {
		r.Logger.Warn("batch.timing", "err", err)
	}

	r.Logger.Info("batch.start", "files", len(paths), "workers", r.workers, "cache", r.cache != nil)

	if r.cache != nil {
		loadStart := time.Now()
		if err := r.cache.Load(); err != nil {
			return nil, fmt.Errorf("loading cache: %w", err)
		}
		timing.RecordStage("cache_load", loadStart, time.Since(loadStart), "ok")
	}

	st := &run{Runner: r, timing: timing, memo: make(map[memoKey]*shallow.Result)}
	report := &Report{Files: make([]FileOutcome, len(paths))}

	parseStart := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, path := range paths {
		rel := r.relPath(path)
		if err := ctx.Err(); err != nil {
			report.Files[i] = FileOutcome{Path: rel, Err: err}
			continue
		}
		g.Go(func() error {
			report.Files[i] = st.file(ctx, path, rel)
			return nil
		})
	}
	_ = g.Wait()
	timing.RecordStage("parse", parseStart, time.Since(parseStart), "ok")

	for _, f := range report.Files {
		switch {
		case f.Err != nil:
			report.Failed++
		case f.Cached:
			report.CacheHits++
		default:
			report.Parsed++
		}
	}

	if r.cache != nil {
		saveStart := time.Now()
		if err := r.cache.Save(); err != nil {
			r.Logger.Warn("batch.cache", "err", err)
			timing.RecordStage("cache_save", saveStart, time.Since(saveStart), "error")
		} else {
			timing.RecordStage("cache_save", saveStart, time.Since(saveStart), "ok")
		}
	}

	report.Elapsed = time.Since(start)
	r.Logger.Info("batch.done",
		"files", len(paths),
		"parsed", report.Parsed,
		"cache_hits", report.CacheHits,
		"failed", report.Failed,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

func (r *Runner) relPath(path string) string {
	if r.root == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (st *run) file(ctx context.Context, path, rel string) (out FileOutcome) {
	start := time.Now()
	out.Path = rel
	status := "extracted"

	defer func() {
		if p := recover(); p != nil {
			out = FileOutcome{Path: rel, Err: fmt.Errorf("%s: panic: %v", rel, p)}
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			status = "error"
			st.Logger.Warn("batch.file", "file", rel, "err", out.Err)
		} else {
			st.Logger.Debug("batch.file", "file", rel, "status", status, "duration", out.Duration)
		}
		st.timing.RecordFile("parse", rel, status, start, out.Duration)
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		out.Err = fmt.Errorf("reading %s: %w", rel, err)
		return out
	}
	source := string(data)
	hash := hashString(source)
	dialect := st.cfg.DialectFor(rel).String()

	if st.cache != nil {
		tables, ok, err := st.cache.Get(rel, hash)
		if err != nil {
			st.Logger.Warn("batch.cache", "file", rel, "err", err)
		} else if ok && cachedDialect(tables) == dialect {
			for i := range tables.Files {
				tables.Files[i].IsThirdParty = st.cfg.IsThirdPartyFile(rel)
			}
			status = "cache_hit"
			out.Facts = tables
			out.Cached = true
			return out
		}
	}

	res, err := st.parse(ctx, rel, source, dialect, hash)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res
	out.Facts = facts.BuildTables([]*shallow.Result{res}, map[string]bool{rel: st.cfg.IsThirdPartyFile(rel)})

	if st.cache != nil && !res.Partial() {
		if err := st.cache.Put(rel, hash, out.Facts); err != nil {
			st.Logger.Warn("batch.cache", "file", rel, "err", err)
		}
	}
	return out
}

// parse shares the work between files with identical content and dialect.
// Partial results are not memoized; they depend on the deadline of the
// caller that produced them.
func (st *run) parse(ctx context.Context, rel, source, dialect, hash string) (*shallow.Result, error) {
	key := memoKey{dialect: dialect, hash: hash}

	st.mu.Lock()
	cached, ok := st.memo[key]
	st.mu.Unlock()
	if ok {
		return cached.WithPath(rel), nil
	}

	v, err, shared := st.group.Do(dialect+":"+hash, func() (any, error) {
		st.mu.Lock()
		done, ok := st.memo[key]
		st.mu.Unlock()
		if ok {
			return done, nil
		}
		res, err := shallow.Parse(ctx, shallow.Input{Path: rel, Source: source, Dialect: dialect}, st.opts)
		if err != nil {
			return nil, err
		}
		if !res.Partial() {
			st.mu.Lock()
			st.memo[key] = res
			st.mu.Unlock()
		}
		return res, nil
	})
	if err != nil && shared {
		// The error text names the path of the caller that ran the parse.
		return shallow.Parse(ctx, shallow.Input{Path: rel, Source: source, Dialect: dialect}, st.opts)
	}
	if err != nil {
		return nil, err
	}
	return v.(*shallow.Result).WithPath(rel), nil
}

// hashOptions keys the disk cache on everything that changes the facts of
// an unchanged file.
func hashOptions(opts shallow.Options) (string, error) {
	data, err := json.Marshal(struct {
		Parser  string
		Options shallow.Options
	}{parserVersion, opts})
	if err != nil {
		return "", fmt.Errorf("hashing parse options: %w", err)
	}
	return hashString(string(data)), nil
}

// cachedDialect returns the dialect the cached rows were parsed with. File
// entries can change it without touching the parse options.
func cachedDialect(t facts.Tables) string {
	if len(t.Files) == 0 {
		return ""
	}
	return t.Files[0].Dialect
}
