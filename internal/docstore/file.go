// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.yaml.in/yaml/v3"
)

const defaultArticleDir = "output/articles"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// FileStore writes each article as Markdown with YAML front matter and as
// rendered HTML under Dir/<parent>/.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir (default output/articles).
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = defaultArticleDir
	}
	return &FileStore{Dir: dir}
}

// SaveArticle writes v<version>.md and v<version>.html.
func (s *FileStore) SaveArticle(_ context.Context, a Article) error {
	mdPath := filepath.Join(s.Dir, filepath.FromSlash(objectName(a, "md")))
	if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
		return fmt.Errorf("creating article directory: %w", err)
	}

	doc, err := renderMarkdown(a)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(mdPath, doc); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := markdown.Convert([]byte(a.Markdown), &html); err != nil {
		return fmt.Errorf("rendering HTML: %w", err)
	}
	htmlPath := filepath.Join(s.Dir, filepath.FromSlash(objectName(a, "html")))
	return writeFileAtomic(htmlPath, html.Bytes())
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// renderMarkdown prefixes the article body with YAML front matter.
func renderMarkdown(a Article) ([]byte, error) {
	front, err := yaml.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")
	buf.WriteString(a.Markdown)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
