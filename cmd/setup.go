package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.Load()

	apiKey := ""
	chatModel := cfg.Chat.Model
	voiceName := cfg.Voice.Voice
	themeName := cfg.Appearance.Theme

	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(t.Name, t.Name))
	}

	keyTitle := "OpenAI API key"
	if existing := config.GetAPIKey(cfg); existing != "" {
		keyTitle = fmt.Sprintf("OpenAI API key (current: %s)", maskAPIKey(existing))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(keyTitle).
				Description("Leave blank to keep the current key.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewSelect[string]().
				Title("Chat model").
				Options(
					huh.NewOption("gpt-4o", "gpt-4o"),
					huh.NewOption("gpt-4o-mini", "gpt-4o-mini"),
				).
				Value(&chatModel),
			huh.NewSelect[string]().
				Title("Voice").
				Options(
					huh.NewOption("cedar", "cedar"),
					huh.NewOption("marin", "marin"),
					huh.NewOption("alloy", "alloy"),
				).
				Value(&voiceName),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&themeName),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	if key := strings.TrimSpace(apiKey); key != "" {
		cfg.OpenAI.APIKey = key
	}
	cfg.Chat.Model = chatModel
	cfg.Voice.Voice = voiceName
	cfg.Appearance.Theme = themeName

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `diagrambot setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}

func maskAPIKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
