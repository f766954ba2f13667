// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider adapts model provider APIs to the conversation.Provider
// contract. Each backend streams text deltas, reports a turn complete only
// after the provider signals the end of the response, and returns the full
// updated turn list in provider-canonical form.
package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Client is a conversation provider that holds resources to release.
type Client interface {
	conversation.Provider
	io.Closer
}

// New selects a backend from cfg.Provider. An empty provider means claude.
func New(ctx context.Context, cfg types.AIConfig) (Client, error) {
	switch cfg.Provider {
	case "", types.ProviderClaude:
		return NewClaude(cfg)
	case types.ProviderOpenAI:
		return NewOpenAI(cfg)
	case types.ProviderVertex:
		return NewVertex(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.Provider)
	}
}
