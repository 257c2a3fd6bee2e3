// Package realtime maintains a websocket session against the realtime
// speech API: it pushes session configuration, dispatches server events to
// registered handlers, and executes function tools the model calls.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWSBaseURL = "wss://api.openai.com/v1/realtime"

	handshakeTimeout = 10 * time.Second
)

// ToolFunc executes a function tool with model-supplied JSON arguments.
// The returned string goes back to the model as the function output.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool pairs a wire definition with its implementation.
type Tool struct {
	Def ToolDef
	Run ToolFunc
}

// Handler receives a decoded server event.
type Handler func(Event)

// Config describes the session to establish.
type Config struct {
	APIKey       string
	BaseURL      string // empty selects the public endpoint
	Model        string
	Voice        string
	Speed        float64
	Instructions string
	Tools        []Tool
}

// Session is a live websocket session. Register handlers with On before
// calling Run; Run owns the read loop until the connection ends.
type Session struct {
	conn  *websocket.Conn
	cfg   Config
	tools map[string]Tool

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}

	handlersMu sync.Mutex
	handlers   map[string][]Handler

	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects and sends the initial session configuration. The read loop
// does not start until Run is called, so handlers registered in between
// cannot miss events.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultWSBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("realtime: parsing URL: %w", err)
	}
	q := u.Query()
	q.Set("model", cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if len(body) > 0 {
				return nil, fmt.Errorf("realtime: connect (status %d): %s", resp.StatusCode, body)
			}
			return nil, fmt.Errorf("realtime: connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: connect: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		conn:     conn,
		cfg:      cfg,
		tools:    make(map[string]Tool, len(cfg.Tools)),
		done:     make(chan struct{}),
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}

	update := sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Type:         "realtime",
			Instructions: cfg.Instructions,
			Audio: &audioConfig{
				Output: outputAudio{Voice: cfg.Voice, Speed: cfg.Speed},
			},
		},
	}
	for _, t := range cfg.Tools {
		s.tools[t.Def.Name] = t
		update.Session.Tools = append(update.Session.Tools, t.Def)
	}

	if err := s.sendJSON(update); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("realtime: configuring session: %w", err)
	}
	return s, nil
}

// On registers a handler for a server event type. Multiple handlers for the
// same type run in registration order.
func (s *Session) On(eventType string, fn Handler) {
	s.handlersMu.Lock()
	s.handlers[eventType] = append(s.handlers[eventType], fn)
	s.handlersMu.Unlock()
}

// Done is closed when the read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run reads server events until the connection or context ends. A handler
// panic is contained to its event; tool failures are reported back to the
// model, not surfaced as session errors.
func (s *Session) Run() error {
	defer close(s.done)
	defer s.cancel()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("realtime: reading event: %w", err)
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		s.dispatch(event)

		if event.Type == EventResponseDone && event.Response != nil {
			for _, item := range event.Response.Output {
				if item.Type == "function_call" {
					s.handleFunctionCall(item)
				}
			}
		}
	}
}

func (s *Session) dispatch(event Event) {
	s.handlersMu.Lock()
	fns := append([]Handler(nil), s.handlers[event.Type]...)
	s.handlersMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() { _ = recover() }()
			fn(event)
		}()
	}
}

// handleFunctionCall runs a tool and feeds its output back, then asks for a
// follow-up response so the model can speak about the result.
func (s *Session) handleFunctionCall(item Item) {
	tool, ok := s.tools[item.Name]

	var output string
	if !ok {
		output = fmt.Sprintf("Error: unknown function %q", item.Name)
	} else if out, err := tool.Run(s.ctx, json.RawMessage(item.Arguments)); err != nil {
		output = "Error: " + err.Error()
	} else {
		output = out
	}

	_ = s.sendJSON(itemCreate{
		Type: "conversation.item.create",
		Item: clientItem{Type: "function_call_output", CallID: item.CallID, Output: output},
	})
	_ = s.sendJSON(responseCreate{Type: "response.create"})
}

// SendUserText injects a text message as if the user had spoken it and
// requests a response.
func (s *Session) SendUserText(text string) error {
	if err := s.sendJSON(itemCreate{
		Type: "conversation.item.create",
		Item: clientItem{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}); err != nil {
		return err
	}
	return s.sendJSON(responseCreate{Type: "response.create"})
}

// UpdateInstructions replaces the session instructions mid-session.
func (s *Session) UpdateInstructions(instructions string) error {
	return s.sendJSON(sessionUpdate{
		Type:    "session.update",
		Session: sessionConfig{Type: "realtime", Instructions: instructions},
	})
}

func (s *Session) sendJSON(v any) error {
	if s.closed.Load() {
		return fmt.Errorf("realtime: session closed")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: encoding event: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	return s.conn.Close()
}
