package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/realtime"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/usage"
	"github.com/diagramlab/diagrambot/internal/web"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Launch the browser voice assistant",
	RunE:  runVoice,
}

func init() {
	rootCmd.AddCommand(voiceCmd)
}

func runVoice(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	apiKey, err := config.RequireAPIKey(cfg)
	if err != nil {
		return err
	}

	model := cfg.Voice.Model
	if flagModel != "" {
		model = flagModel
	}

	basePrompt, err := config.BuildPrompt(cfg.General.PromptFile)
	if err != nil {
		return fmt.Errorf("building system prompt: %w", err)
	}

	st, sessionID, started := beginHistory("voice", model)

	var saved string
	persist := func(string) error { return nil }
	if st != nil {
		saved, _ = st.LoadInstructions()
		persist = st.SaveInstructions
	}

	holder := diagram.NewHolder()
	if st != nil {
		holder.OnChange(func(d diagram.State) {
			_ = st.SaveDiagram(sessionID, d)
		})
	}
	acc := usage.NewAccumulator(config.TableOrDefault(cfg.Voice.PriceTable))

	var rt *realtime.Session
	var voice *session.Voice
	srv := web.New(web.Config{Addr: cfg.Server.Addr, Mode: "voice", Model: model}, web.Handlers{
		UserText: func(text string) {
			if rt != nil {
				_ = rt.SendUserText(text)
			}
		},
		CopyLink: func() {
			if voice != nil {
				voice.CopyShareLink()
			}
		},
		SaveInstructions: func(instructions string) {
			if voice != nil {
				_ = voice.SaveInstructions(instructions)
			}
		},
	})

	voice = session.NewVoice(holder, acc, srv, basePrompt, persist)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err = realtime.Dial(ctx, realtime.Config{
		APIKey:       apiKey,
		Model:        model,
		Voice:        cfg.Voice.Voice,
		Speed:        cfg.Voice.Speed,
		Instructions: config.WithInstructions(basePrompt, saved),
		Tools:        voice.Tools(),
	})
	if err != nil {
		return fmt.Errorf("connecting realtime session: %w", err)
	}
	defer rt.Close()

	voice.Attach(rt)

	fmt.Fprintf(os.Stderr, "  Voice assistant at http://%s\n", cfg.Server.Addr)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(ctx) }()
	go func() { errCh <- rt.Run() }()

	err = <-errCh
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) && flagDebug {
		log.Printf("voice session ended: %v", err)
	}

	finishHistory(st, sessionID, "voice", model, started, acc.Snapshot(), acc.CategoryCounts())
	return nil
}
