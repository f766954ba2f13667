// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/pkg/types"
)

func testArticle() Article {
	return Article{
		ParentID:    "doc-42",
		SessionID:   "sess-1",
		Version:     3,
		Markdown:    "## Intro\n\nHello.\n\n| a | b |\n|---|---|\n| 1 | 2 |",
		WordCount:   12,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreWritesMarkdownAndHTML(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.SaveArticle(context.Background(), testArticle()))

	md, err := os.ReadFile(filepath.Join(dir, "doc-42", "v3.md"))
	require.NoError(t, err)

	parts := bytes.SplitN(md, []byte("---\n"), 3)
	require.Len(t, parts, 3)
	var front Article
	require.NoError(t, yaml.Unmarshal(parts[1], &front))
	assert.Equal(t, "sess-1", front.SessionID)
	assert.Equal(t, 3, front.Version)
	assert.Equal(t, 12, front.WordCount)
	assert.Empty(t, front.Markdown)
	assert.Contains(t, string(parts[2]), "## Intro")

	html, err := os.ReadFile(filepath.Join(dir, "doc-42", "v3.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h2>Intro</h2>")
	assert.Contains(t, string(html), "<table>")

	_, err = os.Stat(filepath.Join(dir, "doc-42", "v3.md.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreKeepsVersionsSeparate(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	a := testArticle()
	require.NoError(t, s.SaveArticle(context.Background(), a))
	a.Version = 4
	a.Markdown = "second"
	require.NoError(t, s.SaveArticle(context.Background(), a))

	entries, err := os.ReadDir(filepath.Join(dir, "doc-42"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestObjectNameIsSafe(t *testing.T) {
	tests := []struct {
		parent string
		want   string
	}{
		{"doc-42", "doc-42/v1.md"},
		{"../../etc", "_.._etc/v1.md"},
		{"a/b c", "a_b_c/v1.md"},
		{"..", "_/v1.md"},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			assert.Equal(t, tt.want, objectName(Article{ParentID: tt.parent, Version: 1}, "md"))
		})
	}
}

func TestArticleFields(t *testing.T) {
	fields := articleFields(testArticle())
	assert.Equal(t, 3, fields["latestVersion"])
	versions, ok := fields["versions"].(map[string]interface{})
	require.True(t, ok)
	v3, ok := versions["v3"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sess-1", v3["sessionId"])
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	b, err := New(ctx, types.DocumentStoreConfig{Backend: types.DocumentsNone})
	require.NoError(t, err)
	assert.NoError(t, b.SaveArticle(ctx, testArticle()))

	b, err = New(ctx, types.DocumentStoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, b)

	_, err = New(ctx, types.DocumentStoreConfig{Backend: "s3"})
	assert.Error(t, err)

	_, err = New(ctx, types.DocumentStoreConfig{Backend: types.DocumentsGCS})
	assert.Error(t, err)

	_, err = New(ctx, types.DocumentStoreConfig{Backend: types.DocumentsFirestore})
	assert.Error(t, err)
}
