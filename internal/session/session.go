// Package session wires the model pipelines to the application state: the
// diagram tool both pipelines expose, the shared diagram holder, usage
// tracking, and the surface callbacks that push updates to whatever UI is
// attached.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// GenerateDiagramTool is the function name both pipelines expose.
const GenerateDiagramTool = "generate_diagram"

// ShutterSelector is the audio element played when a diagram renders.
const ShutterSelector = "#shutter"

// Greeting opens every conversation before the user says anything.
const Greeting = "Hi! I'm your diagram assistant. Describe a process, system, or idea and I'll turn it into a diagram you can refine and share."

// generateDiagramSchema is the JSON schema for the tool arguments.
var generateDiagramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"type": {
			"type": "string",
			"enum": ["mermaid", "graphviz"],
			"description": "Diagram language of the source"
		},
		"source": {
			"type": "string",
			"description": "Complete diagram source code"
		}
	},
	"required": ["type", "source"]
}`)

// GenerateDiagramDescription is the tool description shown to the model.
const GenerateDiagramDescription = "Render a diagram for the user. Call this whenever the user asks for a diagram or wants the current one changed; always pass the complete source, not a delta."

// Notification is a transient user-facing notice. Progress notifications
// carry an ID so they can be cleared when the underlying work finishes.
type Notification struct {
	ID   string
	Text string
	Kind string // "info", "warning", "error", "progress"
}

// UI is the surface both pipelines push updates to. Implementations that do
// not support a capability implement it as a no-op.
type UI interface {
	RenderDiagram(diagram.RenderDirective)
	Notify(Notification)
	ClearNotification(id string)
	CopyToClipboard(text string)
	PlayAudio(selector string)
	SaveInstructions(instructions string)
	TranscriptDelta(itemID, delta string)
	MessageDone(itemID, role, text string)
	UsageChanged(usage.Snapshot)
}

// NopUI discards every update. Embed it to implement UI partially.
type NopUI struct{}

func (NopUI) RenderDiagram(diagram.RenderDirective) {}
func (NopUI) Notify(Notification)                   {}
func (NopUI) ClearNotification(string)              {}
func (NopUI) CopyToClipboard(string)                {}
func (NopUI) PlayAudio(string)                      {}
func (NopUI) SaveInstructions(string)               {}
func (NopUI) TranscriptDelta(string, string)        {}
func (NopUI) MessageDone(string, string, string)    {}
func (NopUI) UsageChanged(usage.Snapshot)           {}

type generateDiagramArgs struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

// applyDiagram validates tool arguments and swaps the holder state.
func applyDiagram(holder *diagram.Holder, args json.RawMessage) (diagram.State, error) {
	var a generateDiagramArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return diagram.State{}, fmt.Errorf("parsing diagram arguments: %w", err)
	}

	kind, ok := diagram.ParseKind(a.Type)
	if !ok {
		return diagram.State{}, fmt.Errorf("unsupported diagram type %q", a.Type)
	}
	if strings.TrimSpace(a.Source) == "" {
		return diagram.State{}, errors.New("diagram source is empty")
	}

	st := diagram.State{Source: a.Source, Kind: kind}
	holder.Set(st)
	return st, nil
}

// renderAndConfirm pushes the render directive and the shutter sound, and
// returns the confirmation the model sees as the tool output.
func renderAndConfirm(ui UI, st diagram.State) string {
	ui.RenderDiagram(diagram.Dispatch(st))
	ui.PlayAudio(ShutterSelector)
	return fmt.Sprintf("The %s diagram was rendered and is now visible to the user.", st.Kind)
}

// shareLink copies the first shareable link for the current diagram, or
// raises a notification when there is nothing to share yet.
func shareLink(holder *diagram.Holder, ui UI) {
	links, err := diagram.Links(holder.Get())
	if err != nil {
		if errors.Is(err, diagram.ErrNoDiagram) {
			ui.Notify(Notification{Text: "No diagram code available to copy yet.", Kind: "warning"})
			return
		}
		ui.Notify(Notification{Text: "Could not build a share link: " + err.Error(), Kind: "error"})
		return
	}
	if len(links) == 0 {
		ui.Notify(Notification{Text: "Sharing is not supported for this diagram type.", Kind: "warning"})
		return
	}

	ui.CopyToClipboard(links[0].URL)
	ui.Notify(Notification{Text: "Link copied to clipboard.", Kind: "info"})
}
