package session

import (
	"context"
	"encoding/json"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/openai"
	"github.com/diagramlab/diagrambot/internal/usage"
)

// Chat drives the text pipeline: a streaming completions client with the
// diagram tool attached, and a poll-and-replace usage tracker reading the
// client's absolute totals.
type Chat struct {
	client *openai.Client
	holder *diagram.Holder
	poller *usage.Poller
	ui     UI
}

// NewChat wires a chat controller. The diagram tool is registered on the
// client here; the caller only supplies the bare client.
func NewChat(client *openai.Client, holder *diagram.Holder, ui UI) *Chat {
	c := &Chat{
		client: client,
		holder: holder,
		poller: usage.NewPoller(client),
		ui:     ui,
	}
	c.poller.OnChange(ui.UsageChanged)

	client.RegisterTool(openai.Tool{
		Name:        GenerateDiagramTool,
		Description: GenerateDiagramDescription,
		Parameters:  generateDiagramSchema,
		Run: func(_ context.Context, args json.RawMessage) (string, error) {
			st, err := applyDiagram(holder, args)
			if err != nil {
				return "", err
			}
			return renderAndConfirm(ui, st), nil
		},
	})
	return c
}

// Tracker exposes the usage tracker for status displays.
func (c *Chat) Tracker() usage.Tracker { return c.poller }

// RunTracker polls usage on the fixed interval until ctx ends.
func (c *Chat) RunTracker(ctx context.Context, debug bool) {
	c.poller.Run(ctx, debug)
}

// Send streams one user turn. Model and tool failures come back as an
// apologetic assistant message instead of an error; the session survives.
func (c *Chat) Send(ctx context.Context, text string, onDelta func(string)) string {
	reply, err := c.client.Stream(ctx, text, onDelta)
	if err != nil {
		return "Sorry, I encountered an error: " + err.Error()
	}
	return reply
}

// CopyShareLink copies the primary share link for the current diagram.
func (c *Chat) CopyShareLink() {
	shareLink(c.holder, c.ui)
}

// ShareLinks returns all share links for the current diagram.
func (c *Chat) ShareLinks() ([]diagram.Link, error) {
	return diagram.Links(c.holder.Get())
}
