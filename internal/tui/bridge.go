package tui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// Messages delivered to the app from outside the update loop.
type (
	// StreamDeltaMsg is one streamed chunk of the pending assistant reply.
	StreamDeltaMsg struct{ Delta string }
	// StreamDoneMsg carries the complete assistant reply.
	StreamDoneMsg struct{ Reply string }
	// DiagramMsg carries a new render directive.
	DiagramMsg struct{ Directive diagram.RenderDirective }
	// NoticeMsg surfaces a transient notification.
	NoticeMsg struct{ Note session.Notification }
	// ClearNoticeMsg removes a keyed notification.
	ClearNoticeMsg struct{ ID string }
	// UsageMsg refreshes the status bar usage numbers.
	UsageMsg struct{ Snapshot usage.Snapshot }
)

// Bridge adapts the session UI surface to bubbletea messages. Callbacks
// arrive from session goroutines; the channel hands them to the update loop.
type Bridge struct {
	events chan<- tea.Msg
}

var _ session.UI = (*Bridge)(nil)

// NewBridge returns a bridge feeding the given event channel.
func NewBridge(events chan<- tea.Msg) *Bridge {
	return &Bridge{events: events}
}

// send never blocks; a stalled UI drops updates instead of stalling the
// session.
func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	default:
	}
}

func (b *Bridge) RenderDiagram(d diagram.RenderDirective) { b.send(DiagramMsg{Directive: d}) }
func (b *Bridge) Notify(n session.Notification)           { b.send(NoticeMsg{Note: n}) }
func (b *Bridge) ClearNotification(id string)             { b.send(ClearNoticeMsg{ID: id}) }
func (b *Bridge) UsageChanged(s usage.Snapshot)           { b.send(UsageMsg{Snapshot: s}) }

// CopyToClipboard writes to the system clipboard directly; only the
// confirmation travels through the update loop.
func (b *Bridge) CopyToClipboard(text string) {
	_ = clipboard.WriteAll(text)
}

// PlayAudio is a no-op; the terminal has no shutter sound.
func (b *Bridge) PlayAudio(string) {}

// SaveInstructions is a no-op; persistence happens at the session layer.
func (b *Bridge) SaveInstructions(string) {}

func (b *Bridge) TranscriptDelta(_, delta string) { b.send(StreamDeltaMsg{Delta: delta}) }

func (b *Bridge) MessageDone(_, role, text string) {
	if role == "assistant" {
		b.send(StreamDoneMsg{Reply: text})
	}
}
