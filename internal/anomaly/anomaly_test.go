package anomaly

import "testing"

func TestListSortedByPosition(t *testing.T) {
	var l List
	l.Add(Structural, 5, 1, "unmatched '}'")
	l.Addf(Lexical, 2, 9, "unterminated %s", "string")
	l.Append(Anomaly{Kind: Ambiguity, Line: 2, Column: 3, Message: "classified as constant"})
	l.Add(Grammar, 2, 9, "ERROR node")

	if l.Len() != 4 || l.Count(Lexical) != 1 || l.Count(Cancelled) != 0 {
		t.Fatalf("unexpected counts len=%d lexical=%d", l.Len(), l.Count(Lexical))
	}

	got := l.Sorted()
	want := []Kind{Ambiguity, Lexical, Grammar, Structural}
	for i, k := range want {
		if got[i].Kind != k {
			t.Fatalf("expected %s at %d, got %s", k, i, got[i].Kind)
		}
	}
	if got[1].Message != "unterminated string" {
		t.Fatalf("expected formatted message, got %q", got[1].Message)
	}
}

func TestSortedDoesNotReorderList(t *testing.T) {
	var l List
	l.Add(Structural, 3, 1, "b")
	l.Add(Structural, 1, 1, "a")
	_ = l.Sorted()
	if l.items[0].Message != "b" {
		t.Fatalf("expected Sorted to return a copy")
	}
}

func TestKindAndAnomalyStrings(t *testing.T) {
	if Cancelled.String() != "cancelled" || Kind(42).String() != "Kind(42)" {
		t.Fatalf("unexpected kind names %q %q", Cancelled, Kind(42))
	}
	a := Anomaly{Kind: Structural, Line: 4, Column: 2, Message: "unexpected '}'"}
	if a.String() != "4:2: structural: unexpected '}'" {
		t.Fatalf("unexpected rendering %q", a.String())
	}
}
