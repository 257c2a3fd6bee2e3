package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "diagrambot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInstructionsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadInstructions()
	if err != nil {
		t.Fatalf("LoadInstructions: %v", err)
	}
	if got != "" {
		t.Fatalf("fresh store instructions = %q, want empty", got)
	}

	if err := s.SaveInstructions("use left-to-right layout"); err != nil {
		t.Fatalf("SaveInstructions: %v", err)
	}
	if err := s.SaveInstructions("prefer graphviz"); err != nil {
		t.Fatalf("SaveInstructions (replace): %v", err)
	}

	got, err = s.LoadInstructions()
	if err != nil {
		t.Fatalf("LoadInstructions: %v", err)
	}
	if got != "prefer graphviz" {
		t.Fatalf("instructions = %q, want latest save", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if err := s.BeginSession("sess-1", "voice", "gpt-realtime", start); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	err := s.FinishSession(SessionRecord{
		SessionID: "sess-1",
		EndedAt:   start.Add(10 * time.Minute),
		Cost:      0.042,
		Tokens:    1234,
		ByCategory: map[config.Category]int64{
			config.InputAudio:  1000,
			config.OutputAudio: 234,
		},
	})
	if err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	recs, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("sessions = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Mode != "voice" || rec.Model != "gpt-realtime" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Cost != 0.042 || rec.Tokens != 1234 {
		t.Fatalf("totals = %g / %d", rec.Cost, rec.Tokens)
	}
	if rec.ByCategory[config.InputAudio] != 1000 || rec.ByCategory[config.OutputAudio] != 234 {
		t.Fatalf("by category = %v", rec.ByCategory)
	}
	if !rec.StartedAt.Equal(start) {
		t.Fatalf("started at = %v, want %v", rec.StartedAt, start)
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.BeginSession(id, "chat", "gpt-4o", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("BeginSession(%s): %v", id, err)
		}
	}

	recs, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(recs) != 3 || recs[0].SessionID != "new" || recs[2].SessionID != "old" {
		t.Fatalf("order = %v", recs)
	}
}

func TestDiagramHistory(t *testing.T) {
	s := openTestStore(t)

	states := []diagram.State{
		{Source: "graph TD; a-->b", Kind: diagram.KindMermaid},
		{Source: "digraph { a -> b }", Kind: diagram.KindGraphviz},
	}
	for _, st := range states {
		if err := s.SaveDiagram("sess-1", st); err != nil {
			t.Fatalf("SaveDiagram: %v", err)
		}
	}

	recs, err := s.Diagrams(0)
	if err != nil {
		t.Fatalf("Diagrams: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("diagrams = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].State != states[1] || recs[1].State != states[0] {
		t.Fatalf("order = %+v", recs)
	}

	limited, err := s.Diagrams(1)
	if err != nil {
		t.Fatalf("Diagrams(1): %v", err)
	}
	if len(limited) != 1 || limited[0].State.Kind != diagram.KindGraphviz {
		t.Fatalf("limited = %+v", limited)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "nested", "data", "diagrambot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	if count, err := s.SessionCount(); err != nil || count != 0 {
		t.Fatalf("SessionCount = %d, %v", count, err)
	}
}
