package realtime

import (
	"encoding/json"

	"github.com/diagramlab/diagrambot/internal/usage"
)

// Server event types the session dispatches to handlers.
const (
	EventItemAdded       = "conversation.item.added"
	EventItemDone        = "conversation.item.done"
	EventResponseCreated = "response.created"
	EventTranscriptDelta = "response.output_audio_transcript.delta"
	EventResponseDone    = "response.done"
	EventError           = "error"
)

// Event is a decoded server event. Fields are populated per event type;
// unset ones are zero.
type Event struct {
	Type     string       `json:"type"`
	EventID  string       `json:"event_id"`
	Item     *Item        `json:"item"`
	Response *Response    `json:"response"`
	Delta    string       `json:"delta"`
	ItemID   string       `json:"item_id"`
	Error    *ServerError `json:"error"`
}

// Item is a conversation item: a message, or a function call and its output.
type Item struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // "message", "function_call", "function_call_output"
	Role      string        `json:"role"`
	Status    string        `json:"status"`
	Name      string        `json:"name"`      // function_call only
	CallID    string        `json:"call_id"`   // function_call only
	Arguments string        `json:"arguments"` // function_call only
	Content   []ContentPart `json:"content"`
}

// ContentPart is one piece of a message item.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

// Text returns the item's text, preferring transcripts for audio parts.
func (it *Item) Text() string {
	for _, p := range it.Content {
		if p.Transcript != "" {
			return p.Transcript
		}
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// Response is the model's response object carried by response.* events.
// Usage arrives on response.done and feeds the accumulator.
type Response struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Output []Item        `json:"output"`
	Usage  *usage.Report `json:"usage"`
}

// ServerError is the payload of an error event.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client event payloads.

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Type         string       `json:"type"` // "realtime"
	Model        string       `json:"model,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	Audio        *audioConfig `json:"audio,omitempty"`
	Tools        []ToolDef    `json:"tools,omitempty"`
}

type audioConfig struct {
	Output outputAudio `json:"output"`
}

type outputAudio struct {
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// ToolDef is the wire form of a function tool exposed to the model.
type ToolDef struct {
	Type        string          `json:"type"` // "function"
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type itemCreate struct {
	Type string     `json:"type"` // "conversation.item.create"
	Item clientItem `json:"item"`
}

type clientItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

type responseCreate struct {
	Type string `json:"type"` // "response.create"
}
