package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/shallow"
)

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := BuildTables([]*shallow.Result{parse(t, "a.c", "int a;\nint b;\n")}, nil)
	next := BuildTables([]*shallow.Result{parse(t, "a.c", "int a;\nint c;\n")}, nil)

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Declarations) != 1 || delta.Added.Declarations[0].Qualified != "c" {
		t.Fatalf("expected c added, got %+v", delta.Added.Declarations)
	}
	if len(delta.Removed.Declarations) != 1 || delta.Removed.Declarations[0].Qualified != "b" {
		t.Fatalf("expected b removed, got %+v", delta.Removed.Declarations)
	}
	if len(delta.Added.Files) != 0 || len(delta.Removed.Files) != 0 {
		t.Fatalf("expected the file row to be unchanged")
	}
	if !ComputeDelta(next, next).Empty() {
		t.Fatalf("expected no delta between identical snapshots")
	}
}

func TestApplyReplaysDelta(t *testing.T) {
	prev := BuildTables([]*shallow.Result{parse(t, "a.c", "int a;\n")}, nil)
	next := BuildTables([]*shallow.Result{
		parse(t, "a.c", "void f() {}\nint a;\n"),
		parse(t, "b.c", "}\n"),
	}, nil)

	got := Apply(prev, ComputeDelta(prev, next))
	if !ComputeDelta(got, next).Empty() {
		t.Fatalf("expected the replayed snapshot to match, got %+v", ComputeDelta(got, next))
	}
	if len(got.Files) != 2 || len(got.Anomalies) != 1 {
		t.Fatalf("unexpected replayed tables %+v", got)
	}
	removed := ComputeDelta(prev, next).Removed.Regions
	if len(removed) == 0 || removed[0].File != "a.c" {
		t.Fatalf("expected the renumbered statement of a.c to be removed, got %+v", removed)
	}
}
