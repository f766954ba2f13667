// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
)

const defaultCollection = "articles"

// FirestoreStore merges each article into the parent's document. Every
// version is kept under versions.v<N>; the top-level fields point at the
// most recent hand-off.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore connects to Firestore in projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, errors.New("firestore: documents.project_id is required")
	}
	if collection == "" {
		collection = defaultCollection
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

// SaveArticle merges the article into <collection>/<parentID>.
func (s *FirestoreStore) SaveArticle(ctx context.Context, a Article) error {
	docRef := s.client.Collection(s.collection).Doc(safeSegment(a.ParentID))
	_, err := docRef.Set(ctx, articleFields(a), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save article to firestore: %w", err)
	}
	return nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error { return s.client.Close() }

// articleFields builds the merge payload for one article.
func articleFields(a Article) map[string]interface{} {
	version := map[string]interface{}{
		"sessionId":   a.SessionID,
		"markdown":    a.Markdown,
		"wordCount":   a.WordCount,
		"completedAt": a.CompletedAt,
	}
	return map[string]interface{}{
		"latestVersion":   a.Version,
		"latestSessionId": a.SessionID,
		"article":         a.Markdown,
		"wordCount":       a.WordCount,
		"updatedAt":       a.CompletedAt,
		"versions": map[string]interface{}{
			"v" + strconv.Itoa(a.Version): version,
		},
	}
}
