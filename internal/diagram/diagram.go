// Package diagram holds the generated-diagram state and the pure helpers
// around it: external sharing links and render dispatch.
package diagram

import "strings"

// Kind selects the rendering and link-encoding strategy for a diagram.
type Kind string

// Supported diagram kinds.
const (
	KindMermaid  Kind = "mermaid"
	KindGraphviz Kind = "graphviz"
)

// ParseKind normalizes a kind string from a tool call. Unknown values return
// ok=false; callers treat those as "not applicable", never as an error.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMermaid:
		return KindMermaid, true
	case KindGraphviz:
		return KindGraphviz, true
	}
	return "", false
}

// State is the most recently generated diagram. Source and Kind are always
// swapped together; a State value is never a mix of two generations.
type State struct {
	Source string
	Kind   Kind
}

// Empty reports whether no diagram has been generated yet.
func (s State) Empty() bool {
	return s.Source == ""
}
