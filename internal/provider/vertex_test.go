// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-engine/pkg/types"
)

func TestVertexContentsRoundTrip(t *testing.T) {
	contents := []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text("plan it")}},
		{Role: vertexModelRole, Parts: []genai.Part{
			genai.Text("1. Intro"),
			genai.FileData{MIMEType: "text/plain", FileURI: "gs://b/o"},
			genai.Text("\n2. Body"),
		}},
	}

	turns, err := fromVertexContents(contents)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, "1. Intro\n2. Body", turns[1].Content)

	back, err := toVertexContents(turns)
	require.NoError(t, err)
	assert.Equal(t, contents, back)
}

func TestVertexPlainTurnsBecomeText(t *testing.T) {
	back, err := toVertexContents([]types.Turn{{Role: types.RoleAssistant, Content: "hi"}})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, vertexModelRole, back[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("hi")}, back[0].Parts)
}

func TestVertexRejectsUnknownStoredPart(t *testing.T) {
	_, err := toVertexContents([]types.Turn{{Role: types.RoleUser, Raw: []byte(`[{"kind":"hologram"}]`)}})
	assert.Error(t, err)
}

func TestNewVertexRequiresProject(t *testing.T) {
	_, err := NewVertex(context.Background(), types.AIConfig{Model: "gemini"})
	assert.Error(t, err)
}
