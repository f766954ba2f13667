// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// OpenAI implements the provider contract with the openai-go SDK. It also
// serves OpenAI-compatible gateways through BaseURL.
type OpenAI struct {
	Model          string
	EvaluatorModel string
	MaxTokens      int
	Opts           []option.RequestOption
}

// NewOpenAI builds an OpenAI provider from cfg.
func NewOpenAI(cfg types.AIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key missing; set ai.api_key or .secrets/openai-api-key")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		Model:          cfg.Model,
		EvaluatorModel: cfg.EvaluatorModel,
		MaxTokens:      cfg.MaxTokens,
		Opts:           opts,
	}, nil
}

// Stream sends one turn over a streaming chat completion. The response is
// only accepted once a choice reports a finish reason.
func (o *OpenAI) Stream(ctx context.Context, req conversation.StreamRequest, onDelta func(string)) ([]types.Turn, error) {
	client := openai.NewClient(o.Opts...)

	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case types.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	}
	if o.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.MaxTokens))
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	finished := false
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onDelta(choice.Delta.Content)
			}
			if choice.FinishReason != "" {
				finished = true
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	if !finished {
		return nil, errors.New("openai stream ended without a finish reason")
	}
	if len(acc.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	turns := make([]types.Turn, 0, len(req.History)+2)
	turns = append(turns, req.History...)
	turns = append(turns,
		types.Turn{Role: types.RoleUser, Content: req.Prompt},
		types.Turn{Role: types.RoleAssistant, Content: acc.Choices[0].Message.Content},
	)
	return turns, nil
}

// Complete makes a single non-streaming chat completion with the evaluator model.
func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	client := openai.NewClient(o.Opts...)

	model := o.EvaluatorModel
	if model == "" {
		model = o.Model
	}
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close releases nothing; clients are built per call.
func (o *OpenAI) Close() error { return nil }
