// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conversation owns the ordered turn history of one generation
// session and drives it against a model provider one turn at a time.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pdiddy/article-engine/pkg/types"
)

// StreamRequest is one conversational turn sent to a Provider.
type StreamRequest struct {
	// System is the standing instruction for the whole conversation.
	System string

	// History is the canonical history so far. Providers must not modify it.
	History []types.Turn

	// Prompt is the new user turn.
	Prompt string
}

// Provider abstracts the generative model so tests can supply a stub.
//
// Stream sends the history plus a new user turn, reports text deltas to
// onDelta as they arrive, and returns only after the provider has signalled
// the end of the response. The returned slice is the provider's canonical
// history: the input turns, the new user turn, and whatever the provider
// appended, including turns or payloads the caller did not author.
//
// Complete is an independent one-shot call outside any conversation.
type Provider interface {
	Stream(ctx context.Context, req StreamRequest, onDelta func(string)) ([]types.Turn, error)
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Driver holds one session's history. At most one Send runs at a time.
type Driver struct {
	provider Provider
	system   string

	mu      sync.Mutex
	history []types.Turn
}

// NewDriver returns a Driver with an empty history.
func NewDriver(p Provider, system string) *Driver {
	return &Driver{provider: p, system: system}
}

// Send transmits the full history plus prompt and blocks until the stream
// has finished. The stored history is replaced by the provider's canonical
// list only after that point. It returns the text of the final assistant
// turn. Provider errors are returned unchanged and leave history untouched.
func (d *Driver) Send(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if onDelta == nil {
		onDelta = func(string) {}
	}

	req := StreamRequest{
		System:  d.system,
		History: cloneTurns(d.history),
		Prompt:  prompt,
	}

	turns, err := d.provider.Stream(ctx, req, onDelta)
	if err != nil {
		return "", err
	}
	if len(turns) <= len(d.history) {
		return "", fmt.Errorf("provider returned %d turns for a history of %d", len(turns), len(d.history))
	}

	d.history = turns
	return lastAssistantText(turns), nil
}

// History returns a copy of the canonical turn history.
func (d *Driver) History() []types.Turn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneTurns(d.history)
}

// lastAssistantText concatenates the trailing run of assistant turns, which
// providers may split into several entries for one response.
func lastAssistantText(turns []types.Turn) string {
	i := len(turns)
	for i > 0 && turns[i-1].Role == types.RoleAssistant {
		i--
	}
	parts := make([]string, 0, len(turns)-i)
	for _, t := range turns[i:] {
		if t.Content != "" {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "")
}

func cloneTurns(in []types.Turn) []types.Turn {
	if in == nil {
		return nil
	}
	out := make([]types.Turn, len(in))
	copy(out, in)
	return out
}
