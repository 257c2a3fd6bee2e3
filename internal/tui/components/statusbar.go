package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/diagramlab/diagrambot/internal/cli"
	"github.com/diagramlab/diagrambot/internal/tui/theme"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// RenderStatusBar renders the bottom status bar: key hints on the left,
// session usage on the right.
func RenderStatusBar(width int, snap usage.Snapshot) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Width(width)

	left := " [enter]send  [ctrl+y]copy link  [ctrl+l]links  [ctrl+c]quit"
	right := fmt.Sprintf("%s · %s tok ", cli.FormatCost(snap.Cost), cli.FormatTokens(snap.Tokens))

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	bar := left
	for i := 0; i < padding; i++ {
		bar += " "
	}
	bar += right

	return style.Render(bar)
}
