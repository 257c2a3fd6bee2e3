package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/openai"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Launch the browser chat assistant",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
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

	client := openai.NewClient(apiKey, cfg.OpenAI.BaseURL, model, prompt)
	holder := diagram.NewHolder()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var chat *session.Chat
	var srv *web.Server
	srv = web.New(web.Config{Addr: cfg.Server.Addr, Mode: "chat", Model: model}, web.Handlers{
		UserText: func(text string) {
			go func() {
				itemID := uuid.NewString()
				reply := chat.Send(ctx, text, func(delta string) {
					srv.TranscriptDelta(itemID, delta)
				})
				srv.MessageDone(itemID, "assistant", reply)
			}()
		},
		CopyLink: func() {
			if chat != nil {
				chat.CopyShareLink()
			}
		},
	})
	chat = session.NewChat(client, holder, srv)
	go chat.RunTracker(ctx, cfg.General.Debug)

	st, sessionID, started := beginHistory("chat", model)
	if st != nil {
		holder.OnChange(func(d diagram.State) {
			_ = st.SaveDiagram(sessionID, d)
		})
	}

	fmt.Fprintf(os.Stderr, "  Chat assistant at http://%s\n", cfg.Server.Addr)

	err = srv.Run(ctx)
	finishHistory(st, sessionID, "chat", model, started, chat.Tracker().Snapshot(), nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving chat: %w", err)
	}
	return nil
}
