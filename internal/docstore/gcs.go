// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore writes <parent>/v<version>.md objects to a Cloud Storage bucket.
// Objects are create-only, so a repeated hand-off of the same version is a
// no-op.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens a storage client for bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs: documents.bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// SaveArticle uploads the article with YAML front matter.
func (s *GCSStore) SaveArticle(ctx context.Context, a Article) error {
	doc, err := renderMarkdown(a)
	if err != nil {
		return err
	}

	name := objectName(a, "md")
	writer := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"
	writer.Metadata = map[string]string{
		"session-id": a.SessionID,
		"parent-id":  a.ParentID,
	}

	if _, err := io.Copy(writer, bytes.NewReader(doc)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write gs://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error { return s.client.Close() }
