package resolve

import "github.com/robert-at-pretension-io/cpp-shallow/internal/region"

// Visibility of a class member.
type Visibility int

const (
	NoVisibility Visibility = iota
	Public
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return ""
}

// visibilityOf maps the keyword of a visibility section. Sections the
// language does not define, such as Qt signals, count as public.
func visibilityOf(word string) Visibility {
	switch word {
	case "private":
		return Private
	case "protected":
		return Protected
	}
	return Public
}

// FrameKind tells what kind of region opened a scope frame.
type FrameKind int

const (
	NamespaceFrame FrameKind = iota
	ClassFrame
	FunctionFrame
)

// ScopeFrame is one level of the stack kept while walking the tree.
// Name holds the absolute qualified name of the scope; anonymous
// namespaces and unnamed classes reuse their parent's name.
type ScopeFrame struct {
	Kind       FrameKind
	Region     region.ID
	Name       []string
	Visibility Visibility
}

type stack []ScopeFrame

func (s *stack) push(f ScopeFrame) { *s = append(*s, f) }

func (s *stack) pop() { *s = (*s)[:len(*s)-1] }

// prefix is the qualified name new declarations are placed under.
func (s stack) prefix() []string {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1].Name
}

// namespacePrefix is the name of the innermost enclosing namespace or
// class, ignoring function frames.
func (s stack) namespacePrefix() []string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Kind != FunctionFrame {
			return s[i].Name
		}
	}
	return nil
}

// class returns the innermost frame when it is a class.
func (s stack) class() *ScopeFrame {
	if len(s) == 0 || s[len(s)-1].Kind != ClassFrame {
		return nil
	}
	return &s[len(s)-1]
}

func join(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
