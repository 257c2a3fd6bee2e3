package diagram

import (
	"strings"
	"testing"
)

func TestEscapeScriptBackslashBeforeBacktick(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{"a`b", "a\\`b"},
		{`a\b`, `a\\b`},
		// Backtick adjacent to backslash: the regression case. Escaping the
		// backtick first would turn its inserted backslash into \\ as well.
		{"a`\\b", "a\\`\\\\b"},
		{"\\`", "\\\\\\`"},
	}

	for _, tc := range cases {
		if got := EscapeScript(tc.in); got != tc.want {
			t.Fatalf("EscapeScript(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDispatchDistinctIDs(t *testing.T) {
	st := State{Source: "graph TD; A-->B", Kind: KindMermaid}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		d := Dispatch(st)
		if seen[d.ID] {
			t.Fatalf("duplicate render ID %q after %d dispatches", d.ID, i)
		}
		seen[d.ID] = true
	}
}

func TestDispatchDirective(t *testing.T) {
	st := State{Source: "digraph{A->B}", Kind: KindGraphviz}
	d := Dispatch(st)

	if d.Delay != RenderDelay {
		t.Fatalf("delay = %v, want %v", d.Delay, RenderDelay)
	}
	if !strings.HasPrefix(d.ID, "graphviz-") {
		t.Fatalf("ID = %q, want graphviz- prefix", d.ID)
	}
	if d.Source != st.Source {
		t.Fatalf("source = %q, want %q", d.Source, st.Source)
	}
}

func TestDirectiveHTML(t *testing.T) {
	gv := Dispatch(State{Source: "digraph{A->B}", Kind: KindGraphviz})
	html := gv.HTML()
	if !strings.Contains(html, "renderGraphvizDiagram") {
		t.Fatalf("graphviz fragment missing renderer call: %s", html)
	}
	if !strings.Contains(html, ", 500);") {
		t.Fatalf("fragment missing 500ms defer: %s", html)
	}
	if !strings.Contains(html, gv.ID) {
		t.Fatalf("fragment missing directive ID: %s", html)
	}

	mm := Dispatch(State{Source: "graph TD; A-->B", Kind: KindMermaid})
	if !strings.Contains(mm.HTML(), "renderMermaidDiagram") {
		t.Fatalf("mermaid fragment missing renderer call: %s", mm.HTML())
	}
}
