package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diagramlab/diagrambot/internal/diagram"
	"github.com/diagramlab/diagrambot/internal/session"
	"github.com/diagramlab/diagrambot/internal/usage"
)

func newTestServer(t *testing.T, handlers Handlers) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{Mode: "chat", Model: "gpt-4o"}, handlers)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// waitForClients blocks until n websocket subscribers are registered.
func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		count := len(s.subs)
		s.mu.RUnlock()
		if count >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d clients", n)
}

func TestHealthAndStatus(t *testing.T) {
	_, srv := newTestServer(t, Handlers{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Mode != "chat" || status.Model != "gpt-4o" {
		t.Fatalf("status = %+v", status)
	}
}

func TestIndexServed(t *testing.T) {
	_, srv := newTestServer(t, Handlers{})

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatalf("content type = %q", got)
	}
}

func TestBroadcastRenderDirective(t *testing.T) {
	s, srv := newTestServer(t, Handlers{})
	conn := dialWS(t, srv)
	waitForClients(t, s, 1)

	st := diagram.State{Source: "graph TD; a-->b", Kind: diagram.KindMermaid}
	s.RenderDiagram(diagram.Dispatch(st))

	msg := readMessage(t, conn)
	if msg.Type != msgRenderDiagram {
		t.Fatalf("type = %s", msg.Type)
	}
	if !strings.Contains(msg.HTML, "renderMermaidDiagram") || !strings.Contains(msg.HTML, "500") {
		t.Fatalf("html = %q", msg.HTML)
	}
}

func TestBroadcastCustomMessages(t *testing.T) {
	s, srv := newTestServer(t, Handlers{})
	conn := dialWS(t, srv)
	waitForClients(t, s, 1)

	s.CopyToClipboard("https://mermaid.ink/img/abc")
	s.PlayAudio(session.ShutterSelector)
	s.SaveInstructions("keep it simple")

	msg := readMessage(t, conn)
	if msg.Type != msgCopyToClipboard || msg.Text != "https://mermaid.ink/img/abc" {
		t.Fatalf("copy message = %+v", msg)
	}
	msg = readMessage(t, conn)
	if msg.Type != msgPlayAudio || msg.Selector != "#shutter" {
		t.Fatalf("play message = %+v", msg)
	}
	msg = readMessage(t, conn)
	if msg.Type != msgSaveInstructions || msg.Instructions != "keep it simple" {
		t.Fatalf("save message = %+v", msg)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	s, srv := newTestServer(t, Handlers{})
	conn := dialWS(t, srv)
	waitForClients(t, s, 1)

	s.Notify(session.Notification{ID: "item_1", Text: "Generating diagram...", Kind: "progress"})
	s.ClearNotification("item_1")

	msg := readMessage(t, conn)
	if msg.Type != msgNotification || msg.ID != "item_1" || msg.Kind != "progress" {
		t.Fatalf("notification = %+v", msg)
	}
	msg = readMessage(t, conn)
	if msg.Type != msgClearNotification || msg.ID != "item_1" {
		t.Fatalf("clear = %+v", msg)
	}
}

func TestInboundActionsDispatch(t *testing.T) {
	texts := make(chan string, 1)
	copies := make(chan struct{}, 1)
	saves := make(chan string, 1)

	s, srv := newTestServer(t, Handlers{
		UserText:         func(text string) { texts <- text },
		CopyLink:         func() { copies <- struct{}{} },
		SaveInstructions: func(instr string) { saves <- instr },
	})
	conn := dialWS(t, srv)
	waitForClients(t, s, 1)

	send := func(v inMessage) {
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(inMessage{Type: "user_text", Text: "draw a flowchart"})
	send(inMessage{Type: "copy_link"})
	send(inMessage{Type: "save_instructions", Instructions: "dark theme"})

	waitRecv := func(name string, ok func() bool) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if ok() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %s", name)
	}
	waitRecv("user_text", func() bool {
		select {
		case got := <-texts:
			if got != "draw a flowchart" {
				t.Fatalf("text = %q", got)
			}
			return true
		default:
			return false
		}
	})
	waitRecv("copy_link", func() bool {
		select {
		case <-copies:
			return true
		default:
			return false
		}
	})
	waitRecv("save_instructions", func() bool {
		select {
		case got := <-saves:
			if got != "dark theme" {
				t.Fatalf("instructions = %q", got)
			}
			return true
		default:
			return false
		}
	})
}

func TestBroadcastSurvivesDisconnectingClients(t *testing.T) {
	s, srv := newTestServer(t, Handlers{})

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.Notify(session.Notification{Text: "tick", Kind: "info"})
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		waitForClients(t, s, 1)
		_ = conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for {
			s.mu.RLock()
			count := len(s.subs)
			s.mu.RUnlock()
			if count == 0 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("subscriber not removed after disconnect")
			}
			time.Sleep(time.Millisecond)
		}
	}
	close(stop)
}

func TestUsageBroadcastUpdatesStatus(t *testing.T) {
	s, srv := newTestServer(t, Handlers{})
	conn := dialWS(t, srv)
	waitForClients(t, s, 1)

	s.UsageChanged(usage.Snapshot{Cost: 0.0012, Tokens: 150})

	msg := readMessage(t, conn)
	if msg.Type != msgUsage || msg.Cost != 0.0012 || msg.Tokens != 150 {
		t.Fatalf("usage message = %+v", msg)
	}

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.CostUSD != 0.0012 || status.Tokens != 150 {
		t.Fatalf("status = %+v", status)
	}
}
