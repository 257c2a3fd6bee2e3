// Package cmd implements the diagrambot CLI commands.
package cmd

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/dotenv"
	"github.com/diagramlab/diagrambot/internal/store"
	"github.com/diagramlab/diagrambot/internal/tui/theme"
	"github.com/diagramlab/diagrambot/internal/usage"
)

var (
	flagDebug bool
	flagModel string
	flagAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "diagrambot",
	Short: "Chat and voice diagram assistants",
	Long:  "Generate Mermaid and Graphviz diagrams through chat or voice, with live rendering and share links.",
	RunE:  runChat,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		_ = dotenv.Load()
	})

	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Print generated diagram code and usage updates")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Override the configured model")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Override the configured server address")
}

// loadConfig is the shared startup path used by all commands.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDebug {
		cfg.General.Debug = true
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}

func historyPath() string {
	return filepath.Join(config.DataDir(), "history.db")
}

// beginHistory opens the history store and records the session start.
// History is best-effort; a broken store never blocks a session.
func beginHistory(mode, model string) (*store.Store, string, time.Time) {
	st, err := store.Open(historyPath())
	if err != nil {
		if flagDebug {
			log.Printf("history store unavailable: %v", err)
		}
		return nil, "", time.Time{}
	}

	id := uuid.NewString()
	started := time.Now()
	if err := st.BeginSession(id, mode, model, started); err != nil {
		if flagDebug {
			log.Printf("recording session start: %v", err)
		}
		_ = st.Close()
		return nil, "", time.Time{}
	}
	return st, id, started
}

// finishHistory writes the final usage totals and closes the store.
func finishHistory(st *store.Store, id, mode, model string, started time.Time, snap usage.Snapshot, byCategory map[config.Category]int64) {
	if st == nil {
		return
	}
	defer st.Close()

	rec := store.SessionRecord{
		SessionID:  id,
		Mode:       mode,
		Model:      model,
		StartedAt:  started,
		EndedAt:    time.Now(),
		Cost:       snap.Cost,
		Tokens:     snap.Tokens,
		ByCategory: byCategory,
	}
	if err := st.FinishSession(rec); err != nil && flagDebug {
		log.Printf("recording session end: %v", err)
	}
}
