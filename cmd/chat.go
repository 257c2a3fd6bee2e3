package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/openai"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the terminal chat assistant",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	apiKey, err := config.RequireAPIKey(cfg)
	if err != nil {
		return err
	}

	model := cfg.Chat.Model
	if flagModel != "" {
		model = flagModel
	}

	prompt, err := config.BuildPrompt(cfg.General.PromptFile)
	if err != nil {
		return fmt.Errorf("building system prompt: %w", err)
	}

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	client := openai.NewClient(apiKey, cfg.OpenAI.BaseURL, model, prompt)
	holder := diagram.NewHolder()

	events := make(chan tea.Msg, 64)
	bridge := tui.NewBridge(events)
	chat := session.NewChat(client, holder, bridge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go chat.RunTracker(ctx, cfg.General.Debug)

	st, sessionID, started := beginHistory("chat", model)
	if st != nil {
		holder.OnChange(func(d diagram.State) {
			_ = st.SaveDiagram(sessionID, d)
		})
	}

	app := tui.NewApp(chat, events)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}

	finishHistory(st, sessionID, "chat", model, started, chat.Tracker().Snapshot(), nil)
	return nil
}
