package diagram

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RenderDelay is how long the browser waits before invoking the rendering
// library, so the surrounding layout settles before container measurement.
const RenderDelay = 500 * time.Millisecond

// RenderDirective is a render request for the client-side rendering library.
// Each directive carries a fresh identifier so repeated renders within one
// session never collide in the DOM.
type RenderDirective struct {
	ID     string
	Kind   Kind
	Source string
	Delay  time.Duration
}

// Dispatch wraps the diagram state into a render directive. Callers must
// gate on non-empty state; Dispatch itself does not check.
func Dispatch(st State) RenderDirective {
	return RenderDirective{
		ID:     fmt.Sprintf("%s-%s", st.Kind, uuid.NewString()),
		Kind:   st.Kind,
		Source: st.Source,
		Delay:  RenderDelay,
	}
}

// EscapeScript escapes diagram source for embedding in a template literal
// inside a <script> block. Backslashes are escaped before backticks; the
// reverse order would double-escape the backslashes that backtick escaping
// inserts.
func EscapeScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}

// HTML returns the renderable fragment for this directive.
func (d RenderDirective) HTML() string {
	fn := "renderMermaidDiagram"
	if d.Kind == KindGraphviz {
		fn = "renderGraphvizDiagram"
	}

	return fmt.Sprintf(
		`<div id=%q style="width: 100%%; height: 100%%; min-height: 400px;">`+
			`<script>setTimeout(function() { %s('%s', `+"`%s`"+`); }, %d);</script>`+
			`</div>`,
		d.ID, fn, d.ID, EscapeScript(d.Source), d.Delay.Milliseconds(),
	)
}
