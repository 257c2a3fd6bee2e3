// Package web serves the browser surface: a small embedded page, a status
// API, and a websocket that pushes render directives, notifications, and
// clipboard/audio/instruction messages to every connected client.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/usage"
)

//go:embed index.html
var indexHTML []byte

// Config controls the server runtime.
type Config struct {
	Addr  string
	Mode  string // "chat" or "voice", reported in status
	Model string
}

// Handlers receive browser-initiated actions. Nil handlers ignore the
// corresponding message.
type Handlers struct {
	UserText         func(text string)
	CopyLink         func()
	SaveInstructions func(instructions string)
}

// Status is served at /v1/status.
type Status struct {
	StartedAt time.Time `json:"started_at"`
	Mode      string    `json:"mode"`
	Model     string    `json:"model"`
	Clients   int       `json:"clients"`
	CostUSD   float64   `json:"cost_usd"`
	Tokens    int64     `json:"tokens"`
}

// Server is the browser-facing HTTP and websocket server. It implements the
// session UI surface by broadcasting to every connected client.
type Server struct {
	cfg      Config
	handlers Handlers
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	startedAt time.Time
	nextSubID int
	subs      map[int]chan outMessage
	lastUsage usage.Snapshot
}

var _ session.UI = (*Server)(nil)

// New returns a server ready to Run.
func New(cfg Config, handlers Handlers) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8410"
	}
	return &Server{
		cfg:       cfg,
		handlers:  handlers,
		startedAt: time.Now(),
		subs:      make(map[int]chan outMessage),
	}
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	status := Status{
		StartedAt: s.startedAt,
		Mode:      s.cfg.Mode,
		Model:     s.cfg.Model,
		Clients:   len(s.subs),
		CostUSD:   s.lastUsage.Cost,
		Tokens:    s.lastUsage.Tokens,
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := make(chan outMessage, 64)
	id := s.addSubscriber(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	for {
		var msg inMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "user_text":
			if s.handlers.UserText != nil {
				s.handlers.UserText(msg.Text)
			}
		case "copy_link":
			if s.handlers.CopyLink != nil {
				s.handlers.CopyLink()
			}
		case "save_instructions":
			if s.handlers.SaveInstructions != nil {
				s.handlers.SaveInstructions(msg.Instructions)
			}
		}
	}

	// Deregister before closing: broadcast must never see a closed channel.
	s.removeSubscriber(id)
	close(ch)
	<-done
}

func (s *Server) addSubscriber(ch chan outMessage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	s.subs[s.nextSubID] = ch
	return s.nextSubID
}

func (s *Server) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// broadcast queues a message to every connected client. Slow clients drop
// messages instead of stalling the session.
func (s *Server) broadcast(msg outMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// The session UI surface.

func (s *Server) RenderDiagram(d diagram.RenderDirective) {
	s.broadcast(outMessage{Type: msgRenderDiagram, ID: d.ID, HTML: d.HTML()})
}

func (s *Server) Notify(n session.Notification) {
	s.broadcast(outMessage{Type: msgNotification, ID: n.ID, Text: n.Text, Kind: n.Kind})
}

func (s *Server) ClearNotification(id string) {
	s.broadcast(outMessage{Type: msgClearNotification, ID: id})
}

func (s *Server) CopyToClipboard(text string) {
	s.broadcast(outMessage{Type: msgCopyToClipboard, Text: text})
}

func (s *Server) PlayAudio(selector string) {
	s.broadcast(outMessage{Type: msgPlayAudio, Selector: selector})
}

func (s *Server) SaveInstructions(instructions string) {
	s.broadcast(outMessage{Type: msgSaveInstructions, Instructions: instructions})
}

func (s *Server) TranscriptDelta(itemID, delta string) {
	s.broadcast(outMessage{Type: msgTranscriptDelta, ID: itemID, Delta: delta})
}

func (s *Server) MessageDone(itemID, role, text string) {
	s.broadcast(outMessage{Type: msgMessageDone, ID: itemID, Role: role, Text: text})
}

func (s *Server) UsageChanged(snap usage.Snapshot) {
	s.mu.Lock()
	s.lastUsage = snap
	s.mu.Unlock()
	s.broadcast(outMessage{Type: msgUsage, Cost: snap.Cost, Tokens: snap.Tokens})
}
