// Package anomaly records the non-fatal problems found while tokenizing,
// matching and resolving a single file. Nothing in the parsing pipeline
// fails on malformed input; it reports an Anomaly and keeps going.
package anomaly

import (
	"fmt"
	"sort"
)

// Kind classifies an anomaly by the stage that produced it.
type Kind int

const (
	// Lexical covers unterminated literals and comments.
	Lexical Kind = iota
	// Structural covers unmatched braces and unexpected tokens at region boundaries.
	Structural
	// Ambiguity marks a construct classified by heuristic.
	Ambiguity
	// Grammar is reported by the optional tree-sitter cross-check.
	Grammar
	// Cancelled marks a parse that stopped early; the tree is partial.
	Cancelled
)

var kindNames = [...]string{
	Lexical:    "lexical",
	Structural: "structural",
	Ambiguity:  "ambiguity",
	Grammar:    "grammar",
	Cancelled:  "cancelled",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Anomaly is a single non-fatal finding with its source position.
type Anomaly struct {
	Kind    Kind
	Line    int
	Column  int
	Message string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", a.Line, a.Column, a.Kind, a.Message)
}

// List collects anomalies for one file. The zero value is ready to use.
// A List is owned by the goroutine parsing the file and is not safe for
// concurrent use.
type List struct {
	items []Anomaly
}

// Add appends an anomaly.
func (l *List) Add(kind Kind, line, column int, msg string) {
	l.items = append(l.items, Anomaly{Kind: kind, Line: line, Column: column, Message: msg})
}

// Addf appends an anomaly with a formatted message.
func (l *List) Addf(kind Kind, line, column int, format string, args ...any) {
	l.Add(kind, line, column, fmt.Sprintf(format, args...))
}

// Append adds already-built anomalies.
func (l *List) Append(items ...Anomaly) {
	l.items = append(l.items, items...)
}

// Len returns the number of collected anomalies.
func (l *List) Len() int {
	return len(l.items)
}

// Count returns the number of anomalies of the given kind.
func (l *List) Count(kind Kind) int {
	n := 0
	for _, a := range l.items {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Sorted returns a copy ordered by position, keeping insertion order for ties.
func (l *List) Sorted() []Anomaly {
	out := make([]Anomaly, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out
}
