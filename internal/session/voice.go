package session

import (
	"context"
	"encoding/json"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/realtime"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// Voice drives the speech pipeline: event handlers on a realtime session,
// the diagram tool, and an event-driven usage accumulator fed by per-response
// reports.
type Voice struct {
	holder *diagram.Holder
	acc    *usage.Accumulator
	ui     UI

	// basePrompt is the system prompt without user context appended.
	basePrompt string
	// persist is called when the user saves conversation instructions.
	persist func(string) error

	rt *realtime.Session
}

// NewVoice builds a voice controller. persist may be nil when saved
// instructions have nowhere to go.
func NewVoice(holder *diagram.Holder, acc *usage.Accumulator, ui UI, basePrompt string, persist func(string) error) *Voice {
	v := &Voice{holder: holder, acc: acc, ui: ui, basePrompt: basePrompt, persist: persist}
	acc.OnChange(ui.UsageChanged)
	return v
}

// Tools returns the function tools to expose on the realtime session.
func (v *Voice) Tools() []realtime.Tool {
	return []realtime.Tool{{
		Def: realtime.ToolDef{
			Type:        "function",
			Name:        GenerateDiagramTool,
			Description: GenerateDiagramDescription,
			Parameters:  generateDiagramSchema,
		},
		Run: func(_ context.Context, args json.RawMessage) (string, error) {
			st, err := applyDiagram(v.holder, args)
			if err != nil {
				return "", err
			}
			return renderAndConfirm(v.ui, st), nil
		},
	}}
}

// Attach registers event handlers on a dialed session and shows the
// greeting. Call before Run starts the read loop.
func (v *Voice) Attach(s *realtime.Session) {
	v.rt = s

	s.On(realtime.EventItemAdded, v.onItemAdded)
	s.On(realtime.EventItemDone, v.onItemDone)
	s.On(realtime.EventTranscriptDelta, func(e realtime.Event) {
		v.ui.TranscriptDelta(e.ItemID, e.Delta)
	})
	s.On(realtime.EventResponseDone, v.onResponseDone)
	s.On(realtime.EventError, func(e realtime.Event) {
		if e.Error != nil {
			v.ui.Notify(Notification{Text: "Sorry, I encountered an error: " + e.Error.Message, Kind: "error"})
		}
	})

	v.greet()
}

// greet pushes the opening message straight to the transcript as assistant
// output. It is authored locally; asking the model to speak it would bill a
// response and show up as a user turn.
func (v *Voice) greet() {
	v.ui.MessageDone("greeting", "assistant", Greeting)
}

// onItemAdded raises a progress notification for each pending function
// call, keyed by the item ID so completion can clear it.
func (v *Voice) onItemAdded(e realtime.Event) {
	if e.Item == nil || e.Item.Type != "function_call" {
		return
	}
	v.ui.Notify(Notification{ID: e.Item.ID, Text: "Generating diagram...", Kind: "progress"})
}

func (v *Voice) onItemDone(e realtime.Event) {
	if e.Item == nil {
		return
	}
	switch e.Item.Type {
	case "function_call":
		v.ui.ClearNotification(e.Item.ID)
	case "message":
		if text := e.Item.Text(); text != "" {
			v.ui.MessageDone(e.Item.ID, e.Item.Role, text)
		}
	}
}

// onResponseDone records the response's usage report. Empty or missing
// reports are a no-op in the accumulator.
func (v *Voice) onResponseDone(e realtime.Event) {
	if e.Response == nil || e.Response.Usage == nil {
		return
	}
	v.acc.Record(*e.Response.Usage)
}

// Tracker exposes the usage tracker for status displays.
func (v *Voice) Tracker() usage.Tracker { return v.acc }

// CopyShareLink copies the primary share link for the current diagram.
func (v *Voice) CopyShareLink() {
	shareLink(v.holder, v.ui)
}

// ShareLinks returns all share links for the current diagram.
func (v *Voice) ShareLinks() ([]diagram.Link, error) {
	return diagram.Links(v.holder.Get())
}

// SaveInstructions persists user context and pushes it into the live
// session so the change takes effect immediately.
func (v *Voice) SaveInstructions(instructions string) error {
	if v.persist != nil {
		if err := v.persist(instructions); err != nil {
			return err
		}
	}
	v.ui.SaveInstructions(instructions)
	if v.rt != nil {
		return v.rt.UpdateInstructions(config.WithInstructions(v.basePrompt, instructions))
	}
	return nil
}
