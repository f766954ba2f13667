// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ExportRecord is a session together with its conversation transcript.
type ExportRecord struct {
	Session    *types.GenerationSession `json:"session" yaml:"session"`
	Transcript []types.Turn             `json:"transcript" yaml:"transcript"`
}

// Export loads the session and transcript for id.
func (s *Store) Export(ctx context.Context, id string) (*ExportRecord, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.Transcript(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExportRecord{Session: sess, Transcript: turns}, nil
}

// ExportYAML writes the session record and transcript to w as YAML.
// Opaque provider payloads are omitted; use ExportJSON to keep them.
func (s *Store) ExportYAML(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Export(ctx, id)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the session record and transcript to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Export(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
