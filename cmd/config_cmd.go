package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/cli"
	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [OpenAI]")
	apiKey := config.GetAPIKey(cfg)
	if apiKey != "" {
		fmt.Printf("    API key: %s\n", maskAPIKey(apiKey))
	} else {
		fmt.Println("    API key: not configured")
	}
	if cfg.OpenAI.BaseURL != "" {
		fmt.Printf("    Base URL: %s\n", cfg.OpenAI.BaseURL)
	}
	fmt.Println()

	fmt.Println("  [Chat]")
	fmt.Printf("    Model: %s\n", cfg.Chat.Model)
	fmt.Println()

	fmt.Println("  [Voice]")
	fmt.Printf("    Model:       %s\n", cfg.Voice.Model)
	fmt.Printf("    Voice:       %s\n", cfg.Voice.Voice)
	fmt.Printf("    Speed:       %.1f\n", cfg.Voice.Speed)
	fmt.Printf("    Price table: %s\n", cfg.Voice.PriceTable)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Addr: %s\n", cfg.Server.Addr)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	printLifetimeTotals()

	fmt.Println("  Run `diagrambot setup` to reconfigure.")
	return nil
}

// printLifetimeTotals summarizes the sqlite history, when present.
func printLifetimeTotals() {
	st, err := store.Open(historyPath())
	if err != nil {
		return
	}
	defer st.Close()

	sessions, err := st.Sessions()
	if err != nil || len(sessions) == 0 {
		return
	}

	var cost float64
	var tokens int64
	for _, s := range sessions {
		cost += s.Cost
		tokens += s.Tokens
	}

	fmt.Println("  [History]")
	fmt.Printf("    Sessions: %s\n", cli.FormatNumber(int64(len(sessions))))
	fmt.Printf("    Tokens:   %s\n", cli.FormatTokens(tokens))
	fmt.Printf("    Cost:     %s\n", cli.FormatCost(cost))
	fmt.Println()
}
