package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/usage"
)

func sized(t *testing.T, a App) App {
	t.Helper()
	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(App)
}

func TestGreetingShownOnStart(t *testing.T) {
	a := sized(t, NewApp(nil, make(chan tea.Msg, 8)))

	if !strings.Contains(a.View(), "diagram assistant") {
		t.Fatal("greeting missing from initial view")
	}
}

func TestStreamingDeltasAccumulate(t *testing.T) {
	a := sized(t, NewApp(nil, make(chan tea.Msg, 8)))
	a.streaming = true

	m, _ := a.Update(StreamDeltaMsg{Delta: "Here is "})
	a = m.(App)
	m, _ = a.Update(StreamDeltaMsg{Delta: "your diagram."})
	a = m.(App)

	if a.pending != "Here is your diagram." {
		t.Fatalf("pending = %q", a.pending)
	}

	m, _ = a.Update(StreamDoneMsg{Reply: "Here is your diagram."})
	a = m.(App)
	if a.streaming {
		t.Fatal("still streaming after done")
	}
	if a.pending != "" {
		t.Fatalf("pending not cleared: %q", a.pending)
	}
	last := a.messages[len(a.messages)-1]
	if last.role != "assistant" || last.text != "Here is your diagram." {
		t.Fatalf("last message = %+v", last)
	}
}

func TestDiagramMsgUpdatesPanel(t *testing.T) {
	a := sized(t, NewApp(nil, make(chan tea.Msg, 8)))

	st := diagram.State{Source: "graph TD; a-->b", Kind: diagram.KindMermaid}
	m, _ := a.Update(DiagramMsg{Directive: diagram.Dispatch(st)})
	a = m.(App)

	view := a.View()
	if !strings.Contains(view, "mermaid diagram") || !strings.Contains(view, "graph TD") {
		t.Fatal("diagram panel missing from view")
	}
}

func TestNoticeLifecycle(t *testing.T) {
	a := sized(t, NewApp(nil, make(chan tea.Msg, 8)))

	m, _ := a.Update(NoticeMsg{Note: session.Notification{ID: "n1", Text: "Generating diagram...", Kind: "progress"}})
	a = m.(App)
	if !strings.Contains(a.View(), "Generating diagram...") {
		t.Fatal("notice not shown")
	}

	m, _ = a.Update(ClearNoticeMsg{ID: "n1"})
	a = m.(App)
	if strings.Contains(a.View(), "Generating diagram...") {
		t.Fatal("notice not cleared")
	}
}

func TestUsageShownInStatusBar(t *testing.T) {
	a := sized(t, NewApp(nil, make(chan tea.Msg, 8)))

	m, _ := a.Update(UsageMsg{Snapshot: usage.Snapshot{Cost: 0.0012, Tokens: 150}})
	a = m.(App)

	view := a.View()
	if !strings.Contains(view, "$0.0012") || !strings.Contains(view, "150 tok") {
		t.Fatalf("status bar missing usage: %q", view)
	}
}

func TestBridgeDropsWhenChannelFull(t *testing.T) {
	events := make(chan tea.Msg, 1)
	b := NewBridge(events)

	b.UsageChanged(usage.Snapshot{Tokens: 1})
	b.UsageChanged(usage.Snapshot{Tokens: 2}) // must not block

	msg := <-events
	if got := msg.(UsageMsg).Snapshot.Tokens; got != 1 {
		t.Fatalf("first message tokens = %d, want 1", got)
	}
	select {
	case extra := <-events:
		t.Fatalf("unexpected second message: %+v", extra)
	default:
	}
}
