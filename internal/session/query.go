// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/article-engine/internal/guard"
	"github.com/pdiddy/article-engine/pkg/types"
)

// ListOptions filters List results.
type ListOptions struct {
	// ParentID restricts results to one parent document.
	ParentID string

	// Status restricts results to one lifecycle state.
	Status types.SessionStatus

	// Limit caps the result count. Zero uses the default (50); a negative
	// value returns every match.
	Limit int
}

const defaultListLimit = 50

// List returns sessions matching opts, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*types.GenerationSession, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`)
	if opts.ParentID != "" {
		qb.WriteString(` AND parent_id = ?`)
		args = append(args, opts.ParentID)
	}
	if opts.Status != "" {
		qb.WriteString(` AND status = ?`)
		args = append(args, string(opts.Status))
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	qb.WriteString(` ORDER BY created_at DESC, version DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.GenerationSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SaveTranscript replaces the stored conversation history of a session.
// Content is sanitized; Raw provider payloads are stored byte for byte.
func (s *Store) SaveTranscript(ctx context.Context, id string, turns []types.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getSession(ctx, tx, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clearing transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, raw) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		var raw any
		if len(t.Raw) > 0 {
			raw = []byte(t.Raw)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(t.Role), guard.Sanitize(t.Content), raw); err != nil {
			return fmt.Errorf("inserting turn %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Transcript returns the stored conversation history of a session in order.
func (s *Store) Transcript(ctx context.Context, id string) ([]types.Turn, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, raw FROM turns WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	defer rows.Close()

	var turns []types.Turn
	for rows.Next() {
		var (
			t    types.Turn
			role string
			raw  []byte
		)
		if err := rows.Scan(&role, &t.Content, &raw); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = types.Role(role)
		if len(raw) > 0 {
			t.Raw = raw
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// MarkInterrupted fails every session still marked orchestrating. It is
// meant to run at startup, before any pipeline of this process exists:
// such sessions belong to a process that died mid-generation.
func (s *Store) MarkInterrupted(ctx context.Context, reason string) (int, error) {
	stale, err := s.List(ctx, ListOptions{Status: types.StatusOrchestrating, Limit: -1})
	if err != nil {
		return 0, err
	}

	failed := types.StatusFailed
	n := 0
	for _, sess := range stale {
		now := s.now()
		err := s.Update(ctx, sess.ID, Patch{
			Status:       &failed,
			ErrorMessage: &reason,
			CompletedAt:  &now,
		})
		if err != nil {
			return n, fmt.Errorf("marking %s interrupted: %w", sess.ID, err)
		}
		n++
	}
	return n, nil
}
