package web

// outMessage is one server-to-browser websocket message. Type selects which
// fields are meaningful.
type outMessage struct {
	Type string `json:"type"`

	ID           string  `json:"id,omitempty"`
	Text         string  `json:"text,omitempty"`
	Kind         string  `json:"kind,omitempty"`
	Role         string  `json:"role,omitempty"`
	Delta        string  `json:"delta,omitempty"`
	HTML         string  `json:"html,omitempty"`
	Selector     string  `json:"selector,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	Tokens       int64   `json:"tokens,omitempty"`
}

// Server-to-browser message types.
const (
	msgRenderDiagram     = "render_diagram"
	msgNotification      = "notification"
	msgClearNotification = "clear_notification"
	msgCopyToClipboard   = "copy_to_clipboard"
	msgPlayAudio         = "play_audio"
	msgSaveInstructions  = "save_instructions"
	msgTranscriptDelta   = "transcript_delta"
	msgMessageDone       = "message_done"
	msgUsage             = "usage"
)

// inMessage is one browser-to-server websocket message.
type inMessage struct {
	Type         string `json:"type"` // "user_text", "copy_link", "save_instructions"
	Text         string `json:"text"`
	Instructions string `json:"instructions"`
}
