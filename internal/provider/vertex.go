// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/pkg/types"
)

const vertexModelRole = "model"

// Vertex runs the conversation against Gemini on Vertex AI through a
// genai ChatSession.
type Vertex struct {
	client         *genai.Client
	model          string
	evaluatorModel string
	maxTokens      int
}

// NewVertex creates a Vertex AI client for cfg.ProjectID and cfg.Region.
func NewVertex(ctx context.Context, cfg types.AIConfig) (*Vertex, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, errors.New("vertex: ai.project_id and ai.region are required")
	}
	if cfg.Model == "" {
		return nil, errors.New("vertex: model is required")
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Vertex{
		client:         client,
		model:          cfg.Model,
		evaluatorModel: cfg.EvaluatorModel,
		maxTokens:      cfg.MaxTokens,
	}, nil
}

// Stream sends one turn with SendMessageStream. The chat session appends the
// merged reply to its history only when the iterator reports Done, so a
// stream cut short surfaces as an error and leaves the caller's history alone.
func (v *Vertex) Stream(ctx context.Context, req conversation.StreamRequest, onDelta func(string)) ([]types.Turn, error) {
	m := v.generativeModel(v.model, req.System)

	history, err := toVertexContents(req.History)
	if err != nil {
		return nil, err
	}
	cs := m.StartChat()
	cs.History = history

	iter := cs.SendMessageStream(ctx, genai.Text(req.Prompt))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vertex stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			onDelta(text)
		}
	}

	turns, err := fromVertexContents(cs.History)
	if err != nil {
		return nil, err
	}
	if len(turns) < len(req.History)+2 || turns[len(turns)-1].Role != types.RoleAssistant {
		return nil, errors.New("vertex: stream finished without a model reply")
	}
	return turns, nil
}

// Complete makes a single GenerateContent call with the evaluator model.
func (v *Vertex) Complete(ctx context.Context, system, prompt string) (string, error) {
	name := v.evaluatorModel
	if name == "" {
		name = v.model
	}
	resp, err := v.generativeModel(name, system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}

// Close releases the underlying gRPC connection.
func (v *Vertex) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func (v *Vertex) generativeModel(name, system string) *genai.GenerativeModel {
	m := v.client.GenerativeModel(name)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if v.maxTokens > 0 {
		m.SetMaxOutputTokens(int32(v.maxTokens))
	}
	return m
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// vertexPart is the stored form of a genai.Part. Turns keep the full part
// list in Raw so non-text parts survive a round trip through the store.
type vertexPart struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	MIMEType string         `json:"mime_type,omitempty"`
	Data     []byte         `json:"data,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Name     string         `json:"name,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

func encodeParts(parts []genai.Part) (json.RawMessage, string, error) {
	out := make([]vertexPart, 0, len(parts))
	var text strings.Builder
	for _, p := range parts {
		switch p := p.(type) {
		case genai.Text:
			out = append(out, vertexPart{Kind: "text", Text: string(p)})
			text.WriteString(string(p))
		case genai.Blob:
			out = append(out, vertexPart{Kind: "blob", MIMEType: p.MIMEType, Data: p.Data})
		case genai.FileData:
			out = append(out, vertexPart{Kind: "file", MIMEType: p.MIMEType, URI: p.FileURI})
		case genai.FunctionCall:
			out = append(out, vertexPart{Kind: "call", Name: p.Name, Fields: p.Args})
		case genai.FunctionResponse:
			out = append(out, vertexPart{Kind: "response", Name: p.Name, Fields: p.Response})
		default:
			return nil, "", fmt.Errorf("vertex: unsupported part type %T", p)
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, "", fmt.Errorf("encoding parts: %w", err)
	}
	return raw, text.String(), nil
}

func decodeParts(raw json.RawMessage) ([]genai.Part, error) {
	var stored []vertexPart
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decoding parts: %w", err)
	}
	parts := make([]genai.Part, 0, len(stored))
	for _, p := range stored {
		switch p.Kind {
		case "text":
			parts = append(parts, genai.Text(p.Text))
		case "blob":
			parts = append(parts, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
		case "file":
			parts = append(parts, genai.FileData{MIMEType: p.MIMEType, FileURI: p.URI})
		case "call":
			parts = append(parts, genai.FunctionCall{Name: p.Name, Args: p.Fields})
		case "response":
			parts = append(parts, genai.FunctionResponse{Name: p.Name, Response: p.Fields})
		default:
			return nil, fmt.Errorf("vertex: unknown stored part kind %q", p.Kind)
		}
	}
	return parts, nil
}

func toVertexContents(history []types.Turn) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(history))
	for i, t := range history {
		role := string(types.RoleUser)
		if t.Role == types.RoleAssistant {
			role = vertexModelRole
		}
		parts := []genai.Part{genai.Text(t.Content)}
		if len(t.Raw) > 0 {
			decoded, err := decodeParts(t.Raw)
			if err != nil {
				return nil, fmt.Errorf("turn %d: %w", i, err)
			}
			parts = decoded
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}

func fromVertexContents(contents []*genai.Content) ([]types.Turn, error) {
	turns := make([]types.Turn, 0, len(contents))
	for _, c := range contents {
		raw, text, err := encodeParts(c.Parts)
		if err != nil {
			return nil, err
		}
		role := types.RoleUser
		if c.Role == vertexModelRole {
			role = types.RoleAssistant
		}
		turns = append(turns, types.Turn{Role: role, Content: text, Raw: raw})
	}
	return turns, nil
}
