// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// sseEvents renders Claude stream events in wire format.
func sseEvents(events ...string) string {
	var sb strings.Builder
	for _, ev := range events {
		var typed struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(ev), &typed)
		fmt.Fprintf(&sb, "event: %s\ndata: %s\n\n", typed.Type, ev)
	}
	return sb.String()
}

var thinkingStream = sseEvents(
	`{"type":"message_start","message":{"id":"msg_1","role":"assistant","content":[]}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"plan the intro"}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig-abc"}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"content_block_start","index":1,"content_block":{"type":"redacted_thinking","data":"opaque-bytes"}}`,
	`{"type":"content_block_stop","index":1}`,
	`{"type":"content_block_start","index":2,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":2,"delta":{"type":"text_delta","text":"<<<START>>>Hello"}}`,
	`{"type":"content_block_delta","index":2,"delta":{"type":"text_delta","text":" world<<<END>>>"}}`,
	`{"type":"content_block_stop","index":2}`,
	`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
	`{"type":"message_stop"}`,
)

func newClaudeServer(t *testing.T, bodies *[]claudeRequest, stream string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		data, _ := io.ReadAll(r.Body)
		var req claudeRequest
		require.NoError(t, json.Unmarshal(data, &req))
		mu.Lock()
		*bodies = append(*bodies, req)
		mu.Unlock()

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"content":[{"type":"text","text":"YES"}]}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, stream)
	}))
}

func testClaude(url string) *Claude {
	return &Claude{APIKey: "test-key", Model: "claude-test", BaseURL: url, ThinkingBudget: 1024}
}

func TestClaudeStreamKeepsThinkingBlocks(t *testing.T) {
	var bodies []claudeRequest
	ts := newClaudeServer(t, &bodies, thinkingStream)
	defer ts.Close()

	c := testClaude(ts.URL)
	var deltas []string
	turns, err := c.Stream(context.Background(), conversation.StreamRequest{
		System: "system prompt",
		Prompt: "write the intro",
	}, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"<<<START>>>Hello", " world<<<END>>>"}, deltas)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, "write the intro", turns[0].Content)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, "<<<START>>>Hello world<<<END>>>", turns[1].Content)

	var blocks []claudeBlock
	require.NoError(t, json.Unmarshal(turns[1].Raw, &blocks))
	require.Len(t, blocks, 3)
	assert.Equal(t, claudeBlock{Type: "thinking", Thinking: "plan the intro", Signature: "sig-abc"}, blocks[0])
	assert.Equal(t, claudeBlock{Type: "redacted_thinking", Data: "opaque-bytes"}, blocks[1])

	require.Len(t, bodies, 1)
	assert.Equal(t, "system prompt", bodies[0].System)
	require.NotNil(t, bodies[0].Thinking)
	assert.Equal(t, 1024, bodies[0].Thinking.BudgetTokens)
	assert.Greater(t, bodies[0].MaxTokens, 1024)
}

func TestClaudeStreamReplaysRawHistory(t *testing.T) {
	var bodies []claudeRequest
	ts := newClaudeServer(t, &bodies, thinkingStream)
	defer ts.Close()

	c := testClaude(ts.URL)
	first, err := c.Stream(context.Background(), conversation.StreamRequest{Prompt: "one"}, func(string) {})
	require.NoError(t, err)

	_, err = c.Stream(context.Background(), conversation.StreamRequest{History: first, Prompt: "two"}, func(string) {})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	msgs := bodies[1].Messages
	require.Len(t, msgs, 3)
	assert.JSONEq(t, `"one"`, string(msgs[0].Content))
	assert.JSONEq(t, string(first[1].Raw), string(msgs[1].Content))
	assert.JSONEq(t, `"two"`, string(msgs[2].Content))
}

func TestClaudeStreamWithoutMessageStop(t *testing.T) {
	truncated := sseEvents(
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}`,
	)
	var bodies []claudeRequest
	ts := newClaudeServer(t, &bodies, truncated)
	defer ts.Close()

	_, err := testClaude(ts.URL).Stream(context.Background(), conversation.StreamRequest{Prompt: "x"}, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message_stop")
}

func TestClaudeStreamErrorEvent(t *testing.T) {
	errStream := sseEvents(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	var bodies []claudeRequest
	ts := newClaudeServer(t, &bodies, errStream)
	defer ts.Close()

	_, err := testClaude(ts.URL).Stream(context.Background(), conversation.StreamRequest{Prompt: "x"}, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
}

func TestClaudeComplete(t *testing.T) {
	var bodies []claudeRequest
	ts := newClaudeServer(t, &bodies, thinkingStream)
	defer ts.Close()

	c := testClaude(ts.URL)
	c.EvaluatorModel = "claude-small"
	got, err := c.Complete(context.Background(), "judge", "is it done?")
	require.NoError(t, err)
	assert.Equal(t, "YES", got)

	require.Len(t, bodies, 1)
	assert.Equal(t, "claude-small", bodies[0].Model)
	assert.Nil(t, bodies[0].Thinking)
}

func TestClaudeNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := testClaude(ts.URL).Complete(context.Background(), "s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNewClaudeRequiresKey(t *testing.T) {
	_, err := NewClaude(types.AIConfig{Model: "m"})
	assert.Error(t, err)

	c, err := NewClaude(types.AIConfig{Model: "m", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, c.maxTokens())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), types.AIConfig{Provider: "llama"})
	assert.Error(t, err)
}
