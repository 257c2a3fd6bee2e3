package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/diagramlab/diagrambot/internal/config"
	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/realtime"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// recordingUI captures every surface callback for assertions.
type recordingUI struct {
	NopUI

	renders []diagram.RenderDirective
	notes   []Notification
	cleared []string
	copied  []string
	played  []string
	saved   []string
	done    []string
	usage   []usage.Snapshot
}

func (r *recordingUI) RenderDiagram(d diagram.RenderDirective) { r.renders = append(r.renders, d) }
func (r *recordingUI) Notify(n Notification)                   { r.notes = append(r.notes, n) }
func (r *recordingUI) ClearNotification(id string)             { r.cleared = append(r.cleared, id) }
func (r *recordingUI) CopyToClipboard(text string)             { r.copied = append(r.copied, text) }
func (r *recordingUI) PlayAudio(selector string)               { r.played = append(r.played, selector) }
func (r *recordingUI) SaveInstructions(s string)               { r.saved = append(r.saved, s) }
func (r *recordingUI) MessageDone(id, role, text string) {
	r.done = append(r.done, role+": "+text)
}
func (r *recordingUI) UsageChanged(s usage.Snapshot) { r.usage = append(r.usage, s) }

func TestApplyDiagramUpdatesHolder(t *testing.T) {
	holder := diagram.NewHolder()

	st, err := applyDiagram(holder, json.RawMessage(`{"type":"graphviz","source":"digraph { a -> b }"}`))
	if err != nil {
		t.Fatalf("applyDiagram: %v", err)
	}
	if st.Kind != diagram.KindGraphviz {
		t.Fatalf("kind = %s, want graphviz", st.Kind)
	}
	if got := holder.Get(); got != st {
		t.Fatalf("holder state = %+v, want %+v", got, st)
	}
}

func TestApplyDiagramRejectsBadInput(t *testing.T) {
	holder := diagram.NewHolder()
	before := holder.Get()

	cases := []string{
		`{"type":"plantuml","source":"x"}`,
		`{"type":"mermaid","source":"  "}`,
		`not json`,
	}
	for _, args := range cases {
		if _, err := applyDiagram(holder, json.RawMessage(args)); err == nil {
			t.Fatalf("applyDiagram(%q) succeeded, want error", args)
		}
	}
	if holder.Get() != before {
		t.Fatal("failed tool call mutated holder state")
	}
}

func TestDiagramToolRendersAndPlaysShutter(t *testing.T) {
	ui := &recordingUI{}
	holder := diagram.NewHolder()

	st, err := applyDiagram(holder, json.RawMessage(`{"type":"mermaid","source":"graph TD; a-->b"}`))
	if err != nil {
		t.Fatalf("applyDiagram: %v", err)
	}
	out := renderAndConfirm(ui, st)

	if len(ui.renders) != 1 {
		t.Fatalf("renders = %d, want 1", len(ui.renders))
	}
	if ui.renders[0].Kind != diagram.KindMermaid || ui.renders[0].Delay != diagram.RenderDelay {
		t.Fatalf("render directive = %+v", ui.renders[0])
	}
	if len(ui.played) != 1 || ui.played[0] != ShutterSelector {
		t.Fatalf("played = %v, want [%s]", ui.played, ShutterSelector)
	}
	if !strings.Contains(out, "mermaid") {
		t.Fatalf("tool output = %q", out)
	}
}

func TestShareLinkBeforeDiagramNotifies(t *testing.T) {
	ui := &recordingUI{}
	shareLink(diagram.NewHolder(), ui)

	if len(ui.copied) != 0 {
		t.Fatalf("copied = %v, want none", ui.copied)
	}
	if len(ui.notes) != 1 || ui.notes[0].Kind != "warning" {
		t.Fatalf("notes = %+v, want one warning", ui.notes)
	}
}

func TestShareLinkCopiesPrimaryLink(t *testing.T) {
	ui := &recordingUI{}
	holder := diagram.NewHolder()
	holder.Set(diagram.State{Source: "graph TD; a-->b", Kind: diagram.KindMermaid})

	shareLink(holder, ui)

	if len(ui.copied) != 1 || !strings.HasPrefix(ui.copied[0], "https://mermaid.ink/img/") {
		t.Fatalf("copied = %v, want one mermaid.ink link", ui.copied)
	}
	if len(ui.notes) != 1 || ui.notes[0].Kind != "info" {
		t.Fatalf("notes = %+v, want one info note", ui.notes)
	}
}

func voiceTable(t *testing.T) *usage.Accumulator {
	t.Helper()
	table, ok := config.LookupTable(config.TableGPT4Realtime)
	if !ok {
		t.Fatal("gpt4-realtime table missing")
	}
	return usage.NewAccumulator(table)
}

func TestVoiceFunctionCallNotificationLifecycle(t *testing.T) {
	ui := &recordingUI{}
	v := NewVoice(diagram.NewHolder(), voiceTable(t), ui, "base", nil)

	v.onItemAdded(realtime.Event{Item: &realtime.Item{ID: "item_1", Type: "function_call"}})
	if len(ui.notes) != 1 || ui.notes[0].ID != "item_1" || ui.notes[0].Kind != "progress" {
		t.Fatalf("notes = %+v, want progress keyed by item_1", ui.notes)
	}

	v.onItemDone(realtime.Event{Item: &realtime.Item{ID: "item_1", Type: "function_call"}})
	if len(ui.cleared) != 1 || ui.cleared[0] != "item_1" {
		t.Fatalf("cleared = %v, want [item_1]", ui.cleared)
	}
}

func TestVoiceMessageDoneSurfacesTranscript(t *testing.T) {
	ui := &recordingUI{}
	v := NewVoice(diagram.NewHolder(), voiceTable(t), ui, "base", nil)

	v.onItemDone(realtime.Event{Item: &realtime.Item{
		ID:   "item_2",
		Type: "message",
		Role: "assistant",
		Content: []realtime.ContentPart{
			{Type: "output_audio", Transcript: "here is your diagram"},
		},
	}})

	if len(ui.done) != 1 || ui.done[0] != "assistant: here is your diagram" {
		t.Fatalf("done = %v", ui.done)
	}
}

func TestVoiceResponseDoneFeedsAccumulator(t *testing.T) {
	ui := &recordingUI{}
	acc := voiceTable(t)
	v := NewVoice(diagram.NewHolder(), acc, ui, "base", nil)

	v.onResponseDone(realtime.Event{Response: &realtime.Response{
		Usage: &usage.Report{
			InputTokenDetails:  usage.TokenDetails{TextTokens: 100},
			OutputTokenDetails: usage.TokenDetails{TextTokens: 50},
		},
	}})
	v.onResponseDone(realtime.Event{Response: &realtime.Response{}})

	snap := acc.Snapshot()
	if snap.Tokens != 150 {
		t.Fatalf("tokens = %d, want 150", snap.Tokens)
	}
	if len(ui.usage) != 1 {
		t.Fatalf("usage callbacks = %d, want 1 (missing usage must not fire)", len(ui.usage))
	}
}

func TestVoiceGreetingIsAssistantAuthored(t *testing.T) {
	ui := &recordingUI{}
	v := NewVoice(diagram.NewHolder(), voiceTable(t), ui, "base", nil)

	v.greet()

	if len(ui.done) != 1 || ui.done[0] != "assistant: "+Greeting {
		t.Fatalf("done = %v, want one assistant greeting", ui.done)
	}
}

func TestVoiceSaveInstructionsPersists(t *testing.T) {
	ui := &recordingUI{}
	var persisted string
	v := NewVoice(diagram.NewHolder(), voiceTable(t), ui, "base", func(s string) error {
		persisted = s
		return nil
	})

	if err := v.SaveInstructions("prefer left-to-right flowcharts"); err != nil {
		t.Fatalf("SaveInstructions: %v", err)
	}
	if persisted != "prefer left-to-right flowcharts" {
		t.Fatalf("persisted = %q", persisted)
	}
	if len(ui.saved) != 1 {
		t.Fatalf("saved = %v", ui.saved)
	}
}
