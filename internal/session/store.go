// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session persists GenerationSessions and their conversation
// transcripts in SQLite. The store is the system of record for generation
// progress; every text field passes through guard.Sanitize before it is
// written.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-engine/internal/guard"
	"github.com/pdiddy/article-engine/pkg/types"
)

const defaultDBPath = "data/sessions.db"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the session SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens or creates the session database at cfg.Path and creates
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// Immediate transactions take the write lock up front so concurrent
	// version allocation for one parent serializes instead of deadlocking.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=10000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			status TEXT NOT NULL,
			outline TEXT NOT NULL,
			total_sections INTEGER NOT NULL DEFAULT 0,
			completed_sections INTEGER NOT NULL DEFAULT 0,
			total_word_count INTEGER NOT NULL DEFAULT 0,
			final_article TEXT,
			error_message TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(parent_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_parent_id ON sessions(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			raw BLOB,
			PRIMARY KEY(session_id, seq)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create records a new initializing session for parentID. The version is
// allocated inside the insert transaction as one more than the highest
// version ever recorded for parentID.
func (s *Store) Create(ctx context.Context, parentID, outline string) (*types.GenerationSession, error) {
	if err := guard.ValidateParentID(parentID); err != nil {
		return nil, err
	}
	if err := guard.ValidateOutline(outline); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &types.GenerationSession{
		ID:        uuid.NewString(),
		ParentID:  guard.Sanitize(parentID),
		Status:    types.StatusInitializing,
		Outline:   guard.Sanitize(outline),
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM sessions WHERE parent_id = ?`, sess.ParentID,
	).Scan(&sess.Version); err != nil {
		return nil, fmt.Errorf("allocating version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, parent_id, version, status, outline, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '{}', ?, ?)`,
		sess.ID, sess.ParentID, sess.Version, string(sess.Status), sess.Outline,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return sess, nil
}

// Patch lists the fields to change in Update. Nil fields are left alone.
// Metadata entries are merged into the existing map.
type Patch struct {
	Status            *types.SessionStatus
	TotalSections     *int
	CompletedSections *int
	TotalWordCount    *int
	FinalArticle      *string
	ErrorMessage      *string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	Metadata          map[string]string
}

// metadataOnly reports whether the patch touches nothing but metadata.
func (p Patch) metadataOnly() bool {
	return p.Status == nil && p.TotalSections == nil && p.CompletedSections == nil &&
		p.TotalWordCount == nil && p.FinalArticle == nil && p.ErrorMessage == nil &&
		p.StartedAt == nil && p.CompletedAt == nil
}

// Update merges p into the session and refreshes updated_at. A finalized
// session accepts metadata only; status moves must follow
// guard.CanTransition; completed_sections never decreases.
func (s *Store) Update(ctx context.Context, id string, p Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getSession(ctx, tx, id)
	if err != nil {
		return err
	}

	if cur.Status.Terminal() && !p.metadataOnly() {
		return fmt.Errorf("%w: %s is %s", types.ErrSessionFinalized, id, cur.Status)
	}
	if p.Status != nil && !guard.CanTransition(cur.Status, *p.Status) {
		return fmt.Errorf("%w: cannot move %s from %s to %s", types.ErrInvalidInput, id, cur.Status, *p.Status)
	}
	if p.CompletedSections != nil && *p.CompletedSections < cur.CompletedSections {
		return fmt.Errorf("%w: completed sections cannot decrease (%d -> %d)",
			types.ErrInvalidInput, cur.CompletedSections, *p.CompletedSections)
	}

	if p.Status != nil {
		cur.Status = *p.Status
	}
	if p.TotalSections != nil {
		cur.TotalSections = *p.TotalSections
	}
	if p.CompletedSections != nil {
		cur.CompletedSections = *p.CompletedSections
	}
	if p.TotalWordCount != nil {
		cur.TotalWordCount = *p.TotalWordCount
	}
	if p.FinalArticle != nil {
		cur.FinalArticle = guard.SanitizePtr(p.FinalArticle)
	}
	if p.ErrorMessage != nil {
		cur.ErrorMessage = guard.SanitizePtr(p.ErrorMessage)
	}
	if p.StartedAt != nil {
		cur.StartedAt = p.StartedAt
	}
	if p.CompletedAt != nil {
		cur.CompletedAt = p.CompletedAt
	}
	for k, v := range p.Metadata {
		cur.Metadata[guard.Sanitize(k)] = guard.Sanitize(v)
	}

	metaJSON, err := json.Marshal(cur.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, total_sections = ?, completed_sections = ?,
			total_word_count = ?, final_article = ?, error_message = ?, metadata = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(cur.Status), cur.TotalSections, cur.CompletedSections, cur.TotalWordCount,
		nullString(cur.FinalArticle), nullString(cur.ErrorMessage), string(metaJSON),
		nullTime(cur.StartedAt), nullTime(cur.CompletedAt), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}

	return tx.Commit()
}

// Get returns the session with the given id, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.GenerationSession, error) {
	return getSession(ctx, s.db, id)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionColumns = `id, parent_id, version, status, outline, total_sections,
	completed_sections, total_word_count, final_article, error_message, metadata,
	started_at, completed_at, created_at, updated_at`

func getSession(ctx context.Context, q queryer, id string) (*types.GenerationSession, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	return sess, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*types.GenerationSession, error) {
	var (
		sess                       types.GenerationSession
		status, metaJSON           string
		finalArticle, errorMessage sql.NullString
		startedAt, completedAt     sql.NullString
		createdAt, updatedAt       string
	)
	if err := row.Scan(
		&sess.ID, &sess.ParentID, &sess.Version, &status, &sess.Outline,
		&sess.TotalSections, &sess.CompletedSections, &sess.TotalWordCount,
		&finalArticle, &errorMessage, &metaJSON,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	sess.Status = types.SessionStatus(status)
	if finalArticle.Valid {
		sess.FinalArticle = &finalArticle.String
	}
	if errorMessage.Valid {
		sess.ErrorMessage = &errorMessage.String
	}
	sess.Metadata = map[string]string{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata: %w", err)
		}
	}

	var err error
	if sess.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if sess.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
