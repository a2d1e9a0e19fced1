package policy

import (
	"context"
	"testing"

	"github.com/robert-at-pretension-io/cpp-shallow/internal/facts"
)

func TestSessionUpdates(t *testing.T) {
	engine := newEngine(t, nil)
	s := NewSession(engine)
	ctx := context.Background()

	res, err := s.Init(ctx, tablesFor(t, nil, map[string]string{
		"a.c": "int x;\nvoid f() { int x = 1; }\n",
		"b.c": "int y;\n",
	}))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !hasFinding(res, "shadowed-variable", "f::x", 2) {
		t.Fatalf("expected the initial shadow, got %+v", res.Findings)
	}

	delta, res, err := s.Update(ctx, tablesFor(t, nil, map[string]string{
		"a.c": "int x;\nvoid f() { int z = 1; }\n",
	}))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if delta.Empty() {
		t.Fatalf("expected the edit to produce a delta")
	}
	if len(res.Findings) != 0 {
		t.Fatalf("expected the shadow to disappear, got %+v", res.Findings)
	}
	if len(s.Tables().Files) != 2 {
		t.Fatalf("expected b.c to stay in the snapshot, got %+v", s.Tables().Files)
	}

	res, err = s.Snapshot(ctx)
	if err != nil || len(res.Findings) != 0 {
		t.Fatalf("expected an unchanged snapshot, got %v %+v", err, res)
	}
}

func TestSessionDeltaBeforeInit(t *testing.T) {
	s := NewSession(newEngine(t, nil))
	if _, err := s.Delta(context.Background(), facts.Delta{}); err == nil {
		t.Fatalf("expected an error for a delta before init")
	}
}
