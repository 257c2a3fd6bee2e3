package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/cli"
	"github.com/diagramlab/diagrambot/internal/store"
)

var (
	flagHistoryLimit    int
	flagHistoryDiagrams bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sessions and generated diagrams",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "l", 20, "Maximum rows to show")
	historyCmd.Flags().BoolVar(&flagHistoryDiagrams, "diagrams", false, "Show generated diagrams instead of sessions")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
	st, err := store.Open(historyPath())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer st.Close()

	fmt.Println(cli.RenderTitle("diagrambot history"))
	if flagHistoryDiagrams {
		return printDiagramHistory(st)
	}
	return printSessionHistory(st)
}

func printSessionHistory(st *store.Store) error {
	sessions, err := st.Sessions()
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("  No sessions recorded yet. Run `diagrambot chat` or `diagrambot voice`.")
		return nil
	}
	if flagHistoryLimit > 0 && len(sessions) > flagHistoryLimit {
		sessions = sessions[:flagHistoryLimit]
	}

	t := cli.Table{
		Title:   "Sessions",
		Headers: []string{"Started", "Mode", "Model", "Duration", "Tokens", "Cost"},
	}
	for _, s := range sessions {
		duration := "-"
		if !s.EndedAt.IsZero() {
			duration = cli.FormatDuration(int64(s.EndedAt.Sub(s.StartedAt).Seconds()))
		}
		t.Rows = append(t.Rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Mode,
			s.Model,
			duration,
			cli.FormatTokens(s.Tokens),
			cli.FormatCost(s.Cost),
		})
	}

	fmt.Print(cli.RenderTable(t))
	return nil
}

func printDiagramHistory(st *store.Store) error {
	diagrams, err := st.Diagrams(flagHistoryLimit)
	if err != nil {
		return fmt.Errorf("reading diagrams: %w", err)
	}
	if len(diagrams) == 0 {
		fmt.Println("  No diagrams recorded yet.")
		return nil
	}

	t := cli.Table{
		Title:   "Diagrams",
		Headers: []string{"Created", "Kind", "Source"},
	}
	for _, d := range diagrams {
		t.Rows = append(t.Rows, []string{
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(d.State.Kind),
			diagramSummary(d.State.Source),
		})
	}

	fmt.Print(cli.RenderTable(t))
	return nil
}

// diagramSummary collapses source to its first line, truncated for the table.
func diagramSummary(source string) string {
	line := source
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 48 {
		line = line[:45] + "..."
	}
	return line
}
