// Package tui implements the terminal chat interface: a scrolling
// conversation, a diagram panel showing the latest generated source, and a
// status bar with live session usage.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/tui/components"
	"github.com/diagramlab/diagrambot/internal/tui/theme"
	"github.com/diagramlab/diagrambot/internal/usage"
)

type chatMessage struct {
	role string
	text string
}

// App is the bubbletea model for chat mode.
type App struct {
	chat   *session.Chat
	events chan tea.Msg

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	messages  []chatMessage
	pending   string
	streaming bool

	current   diagram.State
	showLinks bool

	notices []session.Notification
	usage   usage.Snapshot

	width  int
	height int
	ready  bool
}

// NewApp builds the chat UI. The events channel must be the one the Bridge
// feeds.
func NewApp(chat *session.Chat, events chan tea.Msg) App {
	ti := textinput.New()
	ti.Placeholder = "Describe a diagram..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		chat:   chat,
		events: events,
		input:  ti,
		spin:   sp,
		messages: []chatMessage{
			{role: "assistant", text: session.Greeting},
		},
	}
}

// Init starts listening for session events.
func (a App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.waitEvent())
}

func (a App) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return <-a.events
	}
}

// Update handles key input and session events.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			return a.submit()
		case "ctrl+y":
			a.chat.CopyShareLink()
			return a, nil
		case "ctrl+l":
			a.showLinks = !a.showLinks
			a.layout()
			return a, nil
		}

	case StreamDeltaMsg:
		a.pending += msg.Delta
		a.refreshConversation()
		return a, a.waitEvent()

	case StreamDoneMsg:
		a.messages = append(a.messages, chatMessage{role: "assistant", text: msg.Reply})
		a.pending = ""
		a.streaming = false
		a.refreshConversation()
		return a, a.waitEvent()

	case DiagramMsg:
		a.current = diagram.State{Source: msg.Directive.Source, Kind: msg.Directive.Kind}
		a.refreshConversation()
		return a, a.waitEvent()

	case NoticeMsg:
		a.notices = append(a.notices, msg.Note)
		return a, a.waitEvent()

	case ClearNoticeMsg:
		kept := a.notices[:0]
		for _, n := range a.notices {
			if n.ID != msg.ID {
				kept = append(kept, n)
			}
		}
		a.notices = kept
		return a, a.waitEvent()

	case UsageMsg:
		a.usage = msg.Snapshot
		return a, a.waitEvent()

	case spinner.TickMsg:
		if !a.streaming {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.streaming {
		return a, nil
	}

	a.messages = append(a.messages, chatMessage{role: "user", text: text})
	a.input.Reset()
	a.streaming = true
	a.pending = ""
	a.refreshConversation()

	chat := a.chat
	events := a.events
	go func() {
		reply := chat.Send(context.Background(), text, func(delta string) {
			events <- StreamDeltaMsg{Delta: delta}
		})
		events <- StreamDoneMsg{Reply: reply}
	}()

	return a, a.spin.Tick
}

func (a *App) layout() {
	inputHeight := 3
	statusHeight := 1
	vpHeight := a.height - inputHeight - statusHeight
	if a.showLinks {
		vpHeight -= a.linksPanelHeight()
	}
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !a.ready {
		a.viewport = viewport.New(a.width, vpHeight)
	} else {
		a.viewport.Width = a.width
		a.viewport.Height = vpHeight
	}
	a.input.Width = a.width - 6
	a.refreshConversation()
}

func (a *App) refreshConversation() {
	a.viewport.SetContent(a.renderConversation())
	a.viewport.GotoBottom()
}

func (a App) renderConversation() string {
	t := theme.Active
	userStyle := lipgloss.NewStyle().Foreground(t.Blue).Bold(true)
	assistantStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	labelStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	width := a.width - 4
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	var b strings.Builder
	for _, m := range a.messages {
		if m.role == "user" {
			b.WriteString(labelStyle.Render("you"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(userStyle.Render(m.text)))
		} else {
			b.WriteString(labelStyle.Render("diagrambot"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(assistantStyle.Render(m.text)))
		}
		b.WriteString("\n\n")
	}

	if a.streaming {
		b.WriteString(labelStyle.Render("diagrambot"))
		b.WriteString("\n")
		if a.pending != "" {
			b.WriteString(wrap.Render(assistantStyle.Render(a.pending)))
		} else {
			b.WriteString(wrap.Render(a.spin.View() + " thinking"))
		}
		b.WriteString("\n")
	}

	if !a.current.Empty() {
		b.WriteString("\n")
		b.WriteString(a.renderDiagramPanel())
	}

	return b.String()
}

func (a App) renderDiagramPanel() string {
	t := theme.Active
	width := a.width - 6
	if width < 20 {
		width = 20
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(0, 1).
		Width(width)
	title := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).
		Render(fmt.Sprintf("%s diagram", a.current.Kind))
	source := lipgloss.NewStyle().Foreground(t.TextMuted).Render(a.current.Source)

	return box.Render(title + "\n" + source)
}

func (a App) linksPanelHeight() int {
	links, err := a.chat.ShareLinks()
	if err != nil || len(links) == 0 {
		return 2
	}
	return len(links) + 2
}

func (a App) renderLinksPanel() string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	urlStyle := lipgloss.NewStyle().Foreground(t.Accent)

	links, err := a.chat.ShareLinks()
	if err != nil || len(links) == 0 {
		return labelStyle.Render("  No diagram to share yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("  Share links:"))
	b.WriteString("\n")
	for _, l := range links {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			labelStyle.Render(l.Label+":"), urlStyle.Render(l.URL)))
	}
	return b.String()
}

func (a App) renderNotices() string {
	if len(a.notices) == 0 {
		return ""
	}
	t := theme.Active
	style := lipgloss.NewStyle().Foreground(t.Yellow)

	last := a.notices[len(a.notices)-1]
	return style.Render(" " + last.Text)
}

// View renders the full frame.
func (a App) View() string {
	if !a.ready {
		return "loading..."
	}

	t := theme.Active
	inputBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Width(a.width - 2).
		Render(a.input.View())

	var b strings.Builder
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	if a.showLinks {
		b.WriteString(a.renderLinksPanel())
	}
	if notice := a.renderNotices(); notice != "" {
		b.WriteString(notice)
		b.WriteString("\n")
	}
	b.WriteString(inputBox)
	b.WriteString("\n")
	b.WriteString(components.RenderStatusBar(a.width, a.usage))
	return b.String()
}
