// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/internal/httputil"
	"github.com/pdiddy/article-engine/pkg/types"
)

const (
	defaultClaudeURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 8192
)

// Claude calls the Anthropic Messages API. Conversation turns are streamed
// over server-sent events; assistant turns keep the complete content block
// list, thinking blocks and signatures included, so the next request
// replays them untouched.
type Claude struct {
	APIKey         string
	Model          string
	EvaluatorModel string
	BaseURL        string
	MaxTokens      int
	ThinkingBudget int

	// MaxRetries bounds HTTP retries on 429/503/529; zero uses the httputil default.
	MaxRetries int
	Client     *http.Client
}

// NewClaude builds a Claude provider from cfg.
func NewClaude(cfg types.AIConfig) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude: api key missing; set ai.api_key or .secrets/anthropic-api-key")
	}
	if cfg.Model == "" {
		return nil, errors.New("claude: model is required")
	}
	return &Claude{
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		EvaluatorModel: cfg.EvaluatorModel,
		BaseURL:        cfg.BaseURL,
		MaxTokens:      cfg.MaxTokens,
		ThinkingBudget: cfg.ThinkingBudget,
	}, nil
}

// claudeRequest is the request body for the Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Stream    bool            `json:"stream,omitempty"`
	Thinking  *claudeThinking `json:"thinking,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

// claudeMessage carries content either as a plain string or as the raw
// block array of an earlier assistant turn.
type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// claudeBlock is a content block in a response.
type claudeBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
}

// claudeResponse is the non-streaming response body.
type claudeResponse struct {
	Content []claudeBlock `json:"content"`
}

// claudeStreamEvent is the data payload of one server-sent event.
type claudeStreamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock *claudeBlock `json:"content_block,omitempty"`
	Delta        *struct {
		Type      string `json:"type"`
		Text      string `json:"text"`
		Thinking  string `json:"thinking"`
		Signature string `json:"signature"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream sends one conversational turn and accumulates the streamed
// response. The call only succeeds once message_stop has been received.
func (c *Claude) Stream(ctx context.Context, req conversation.StreamRequest, onDelta func(string)) ([]types.Turn, error) {
	msgs, err := toClaudeMessages(req.History)
	if err != nil {
		return nil, err
	}
	prompt, _ := json.Marshal(req.Prompt)
	msgs = append(msgs, claudeMessage{Role: string(types.RoleUser), Content: prompt})

	body := claudeRequest{
		Model:     c.Model,
		MaxTokens: c.maxTokens(),
		System:    req.System,
		Stream:    true,
		Messages:  msgs,
	}
	if c.ThinkingBudget > 0 {
		body.Thinking = &claudeThinking{Type: "enabled", BudgetTokens: c.ThinkingBudget}
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	blocks, err := readClaudeStream(resp.Body, onDelta)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding assistant blocks: %w", err)
	}

	turns := make([]types.Turn, 0, len(req.History)+2)
	turns = append(turns, req.History...)
	turns = append(turns,
		types.Turn{Role: types.RoleUser, Content: req.Prompt},
		types.Turn{Role: types.RoleAssistant, Content: blockText(blocks), Raw: raw},
	)
	return turns, nil
}

// Complete makes a single non-streaming call with the evaluator model.
func (c *Claude) Complete(ctx context.Context, system, prompt string) (string, error) {
	content, _ := json.Marshal(prompt)
	model := c.EvaluatorModel
	if model == "" {
		model = c.Model
	}
	resp, err := c.post(ctx, claudeRequest{
		Model:     model,
		MaxTokens: 1024,
		System:    system,
		Messages:  []claudeMessage{{Role: string(types.RoleUser), Content: content}},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	if len(cResp.Content) == 0 {
		return "", errors.New("Claude API returned empty content")
	}
	return blockText(cResp.Content), nil
}

// Close releases nothing; the HTTP client is shared.
func (c *Claude) Close() error { return nil }

func (c *Claude) maxTokens() int {
	n := c.MaxTokens
	if n <= 0 {
		n = defaultMaxTokens
	}
	if c.ThinkingBudget > 0 && n <= c.ThinkingBudget {
		n = c.ThinkingBudget + defaultMaxTokens
	}
	return n
}

func (c *Claude) post(ctx context.Context, body claudeRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultClaudeURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}

func toClaudeMessages(history []types.Turn) ([]claudeMessage, error) {
	msgs := make([]claudeMessage, 0, len(history)+1)
	for i, t := range history {
		content := t.Raw
		if len(content) == 0 {
			b, err := json.Marshal(t.Content)
			if err != nil {
				return nil, fmt.Errorf("encoding turn %d: %w", i, err)
			}
			content = b
		}
		msgs = append(msgs, claudeMessage{Role: string(t.Role), Content: content})
	}
	return msgs, nil
}

// readClaudeStream consumes server-sent events until message_stop and
// returns the assembled content blocks.
func readClaudeStream(r io.Reader, onDelta func(string)) ([]claudeBlock, error) {
	var blocks []claudeBlock
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev claudeStreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decoding stream event: %w", err)
		}

		switch ev.Type {
		case "content_block_start":
			for len(blocks) <= ev.Index {
				blocks = append(blocks, claudeBlock{})
			}
			if ev.ContentBlock != nil {
				blocks[ev.Index] = *ev.ContentBlock
			}
		case "content_block_delta":
			if ev.Delta == nil || ev.Index >= len(blocks) {
				continue
			}
			b := &blocks[ev.Index]
			switch ev.Delta.Type {
			case "text_delta":
				b.Text += ev.Delta.Text
				onDelta(ev.Delta.Text)
			case "thinking_delta":
				b.Thinking += ev.Delta.Thinking
			case "signature_delta":
				b.Signature += ev.Delta.Signature
			}
		case "message_stop":
			return dropEmptyText(blocks), nil
		case "error":
			msg := "unknown stream error"
			if ev.Error != nil {
				msg = ev.Error.Type + ": " + ev.Error.Message
			}
			return nil, fmt.Errorf("Claude stream error: %s", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return nil, errors.New("Claude stream ended before message_stop")
}

// dropEmptyText removes text blocks with no text, which the API rejects
// when they are sent back.
func dropEmptyText(blocks []claudeBlock) []claudeBlock {
	out := blocks[:0]
	for _, b := range blocks {
		if b.Type == "text" && b.Text == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

func blockText(blocks []claudeBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
