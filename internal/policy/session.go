package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
)

// Session keeps the current fact snapshot of a project so that edits can be
// sent as deltas instead of full tables. It is not safe for concurrent use.
type Session struct {
	engine *Engine
	tables facts.Tables
	loaded bool
}

// NewSession starts an empty session on an engine.
func NewSession(engine *Engine) *Session {
	return &Session{engine: engine}
}

// Init loads a full snapshot and returns the current findings.
func (s *Session) Init(ctx context.Context, tables facts.Tables) (*Result, error) {
	s.tables = tables
	s.loaded = true
	return s.Snapshot(ctx)
}

// Delta applies an incremental update and returns the updated findings.
func (s *Session) Delta(ctx context.Context, delta facts.Delta) (*Result, error) {
	if !s.loaded {
		return nil, errors.New("delta before init")
	}
	next := facts.Apply(s.tables, delta)
	if err := s.engine.facts.Validate(next); err != nil {
		return nil, fmt.Errorf("delta produced invalid facts: %w", err)
	}
	s.tables = next
	return s.Snapshot(ctx)
}

// Update replaces the rows of the files present in next and returns the
// delta that was applied along with the findings. A session without a
// snapshot starts from empty tables.
func (s *Session) Update(ctx context.Context, next facts.Tables) (facts.Delta, *Result, error) {
	s.loaded = true
	files := make(map[string]bool, len(next.Files))
	for _, f := range next.Files {
		files[f.Path] = true
	}
	delta := facts.ComputeDelta(facts.FilterTablesByFiles(s.tables, files), next)
	res, err := s.Delta(ctx, delta)
	return delta, res, err
}

// Snapshot evaluates the current state without changes.
func (s *Session) Snapshot(ctx context.Context) (*Result, error) {
	return s.engine.Evaluate(ctx, s.tables)
}

// Tables returns the current snapshot.
func (s *Session) Tables() facts.Tables {
	return s.tables
}
