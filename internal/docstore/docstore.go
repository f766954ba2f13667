// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore hands finished articles to the document store that owns
// parent documents. The engine only writes; rendering, review, and delivery
// belong to the store's consumers.
package docstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/article-engine/pkg/types"
)

// Article is one completed session's output.
type Article struct {
	ParentID    string    `json:"parent_id" yaml:"parent_id" firestore:"parentId"`
	SessionID   string    `json:"session_id" yaml:"session_id" firestore:"sessionId"`
	Version     int       `json:"version" yaml:"version" firestore:"version"`
	Markdown    string    `json:"-" yaml:"-" firestore:"markdown"`
	WordCount   int       `json:"word_count" yaml:"word_count" firestore:"wordCount"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at" firestore:"completedAt"`
}

// DocumentStore persists articles against their parent document.
type DocumentStore interface {
	SaveArticle(ctx context.Context, a Article) error
}

// Backend is a DocumentStore holding client resources.
type Backend interface {
	DocumentStore
	Close() error
}

// Discard accepts and drops every article.
type Discard struct{}

func (Discard) SaveArticle(context.Context, Article) error { return nil }
func (Discard) Close() error                               { return nil }

// New opens the backend selected by cfg.Backend. An empty backend means file.
func New(ctx context.Context, cfg types.DocumentStoreConfig) (Backend, error) {
	switch cfg.Backend {
	case types.DocumentsNone:
		return Discard{}, nil
	case "", types.DocumentsFile:
		return NewFileStore(cfg.Dir), nil
	case types.DocumentsFirestore:
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.Collection)
	case types.DocumentsGCS:
		return NewGCSStore(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown documents.backend %q", cfg.Backend)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectName returns the relative path of an article: <parent>/v<version>.<ext>.
func objectName(a Article, ext string) string {
	return fmt.Sprintf("%s/v%d.%s", safeSegment(a.ParentID), a.Version, ext)
}

// safeSegment reduces a parent id to one path segment or document id.
func safeSegment(id string) string {
	seg := unsafeNameChars.ReplaceAllString(id, "_")
	seg = strings.Trim(seg, ".")
	if seg == "" {
		seg = "_"
	}
	return seg
}
