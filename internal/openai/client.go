// Package openai provides a minimal chat completions client: streamed
// responses, registered tools the model can call, and absolute cost/token
// totals for the usage poller.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/diagramlab/diagrambot/internal/config"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxBodySize    = 1 << 20 // 1 MB, error bodies only

	// maxToolRounds bounds the tool-call loop for a single user turn.
	maxToolRounds = 8
)

var (
	// ErrUnauthorized indicates the API key is invalid or expired.
	ErrUnauthorized = errors.New("openai: unauthorized (check OPENAI_API_KEY)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("openai: rate limited")
)

// ToolFunc executes a registered tool with model-supplied JSON arguments.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a callable function the model may invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON schema for the arguments
	Run         ToolFunc
}

// Client is a stateful chat session against the chat completions API.
// It keeps the conversation history and running usage totals.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client

	mu      sync.Mutex
	history []Message
	tools   map[string]Tool
	cost    float64
	tokens  int64
	table   config.PriceTable
}

// NewClient creates a chat client seeded with the system prompt.
// An empty baseURL selects the public API endpoint.
func NewClient(apiKey, baseURL, model, systemPrompt string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		http:    &http.Client{},
		history: []Message{{Role: "system", Content: systemPrompt}},
		tools:   make(map[string]Tool),
		table:   config.TableOrDefault(model),
	}
}

// RegisterTool makes a tool available to the model.
func (c *Client) RegisterTool(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[t.Name] = t
}

// CumulativeCost returns the absolute USD cost of the session so far.
func (c *Client) CumulativeCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// TotalTokens returns the absolute token count of the session so far.
func (c *Client) TotalTokens() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// Stream sends user text and streams the assistant reply through onDelta,
// returning the full reply. Tool calls issued by the model are executed and
// their outputs fed back until the model produces a final answer.
func (c *Client) Stream(ctx context.Context, userText string, onDelta func(string)) (string, error) {
	c.appendHistory(Message{Role: "user", Content: userText})

	var full strings.Builder
	for round := 0; round < maxToolRounds; round++ {
		text, toolCalls, err := c.streamOnce(ctx, onDelta)
		if err != nil {
			return full.String(), err
		}
		full.WriteString(text)

		if len(toolCalls) == 0 {
			c.appendHistory(Message{Role: "assistant", Content: text})
			return full.String(), nil
		}

		c.appendHistory(Message{Role: "assistant", Content: text, ToolCalls: toolCalls})
		for _, call := range toolCalls {
			c.appendHistory(c.runTool(ctx, call))
		}
	}

	return full.String(), errors.New("openai: tool call loop exceeded limit")
}

func (c *Client) appendHistory(m Message) {
	c.mu.Lock()
	c.history = append(c.history, m)
	c.mu.Unlock()
}

// runTool executes one tool call. A failing tool is contained: the error
// text goes back to the model as the tool result, the session continues.
func (c *Client) runTool(ctx context.Context, call ToolCall) Message {
	c.mu.Lock()
	tool, ok := c.tools[call.Function.Name]
	c.mu.Unlock()

	result := Message{Role: "tool", ToolCallID: call.ID}
	if !ok {
		result.Content = fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
		return result
	}

	out, err := tool.Run(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		result.Content = "Error: " + err.Error()
		return result
	}
	result.Content = out
	return result
}

// streamOnce performs a single streaming completion over the current
// history, returning the streamed text and any tool calls.
func (c *Client) streamOnce(ctx context.Context, onDelta func(string)) (string, []ToolCall, error) {
	c.mu.Lock()
	req := chatRequest{
		Model:         c.model,
		Messages:      append([]Message(nil), c.history...),
		Stream:        true,
		StreamOptions: streamOptions{IncludeUsage: true},
	}
	for _, t := range c.tools {
		req.Tools = append(req.Tools, toolDef{
			Type: "function",
			Function: funcDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	c.mu.Unlock()

	sort.Slice(req.Tools, func(i, j int) bool {
		return req.Tools[i].Function.Name < req.Tools[j].Function.Name
	})

	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("openai: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("openai: creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return "", nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return "", nil, fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return c.readStream(resp.Body, onDelta)
}

// readStream consumes the SSE stream, forwarding content deltas and
// assembling tool-call fragments by index.
func (c *Client) readStream(r io.Reader, onDelta func(string)) (string, []ToolCall, error) {
	var (
		text    strings.Builder
		pending = make(map[int]*ToolCall)
		order   []int
		lastUse *chatUsage
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return text.String(), nil, fmt.Errorf("openai: parsing stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			lastUse = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				if onDelta != nil {
					onDelta(choice.Delta.Content)
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				call, ok := pending[tc.Index]
				if !ok {
					call = &ToolCall{Type: "function"}
					pending[tc.Index] = call
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Function.Name = tc.Function.Name
				}
				call.Function.Arguments += tc.Function.Arguments
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return text.String(), nil, fmt.Errorf("openai: reading stream: %w", err)
	}

	if lastUse != nil {
		c.recordUsage(*lastUse)
	}

	sort.Ints(order)
	calls := make([]ToolCall, 0, len(order))
	for _, idx := range order {
		calls = append(calls, *pending[idx])
	}
	return text.String(), calls, nil
}

// recordUsage folds the final chunk's absolute per-call usage into the
// session totals read by the poller.
func (c *Client) recordUsage(u chatUsage) {
	cached := u.PromptTokensDetails.CachedTokens
	uncached := u.PromptTokens - cached
	if uncached < 0 {
		uncached = 0
	}

	cost := c.table.Cost(config.InputText, uncached) +
		c.table.Cost(config.InputTextCached, cached) +
		c.table.Cost(config.OutputText, u.CompletionTokens)

	c.mu.Lock()
	c.cost += cost
	c.tokens += u.TotalTokens
	c.mu.Unlock()
}
