// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a GenerationSession.
type SessionStatus string

const (
	StatusInitializing  SessionStatus = "initializing"
	StatusOrchestrating SessionStatus = "orchestrating"
	StatusCompleted     SessionStatus = "completed"
	StatusFailed        SessionStatus = "failed"
)

// Terminal reports whether no further lifecycle transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput is returned for rejected caller input such as an empty outline.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionFinalized is returned when a completed or failed session is
	// written to with anything other than metadata.
	ErrSessionFinalized = errors.New("session is finalized")

	// ErrAlreadyRunning is returned when generation is triggered twice for
	// the same session.
	ErrAlreadyRunning = errors.New("generation already running")
)

// GenerationSession is one attempt to generate an article for a parent document.
type GenerationSession struct {
	// ID is an opaque unique identifier.
	ID string `json:"id" yaml:"id"`

	// ParentID identifies the document this session generates content for.
	ParentID string `json:"parent_id" yaml:"parent_id"`

	// Version increases strictly per ParentID and is never reused.
	Version int `json:"version" yaml:"version"`

	Status SessionStatus `json:"status" yaml:"status"`

	// Outline is the free-text seed supplied at creation.
	Outline string `json:"outline" yaml:"outline"`

	TotalSections     int `json:"total_sections" yaml:"total_sections"`
	CompletedSections int `json:"completed_sections" yaml:"completed_sections"`
	TotalWordCount    int `json:"total_word_count" yaml:"total_word_count"`

	// FinalArticle is set once, on completion.
	FinalArticle *string `json:"final_article,omitempty" yaml:"final_article,omitempty"`

	// ErrorMessage is set once, on failure.
	ErrorMessage *string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	Metadata map[string]string `json:"metadata" yaml:"metadata"`

	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Progress is the polling view of a session.
type Progress struct {
	SessionID         string        `json:"session_id" yaml:"session_id"`
	Version           int           `json:"version" yaml:"version"`
	Status            SessionStatus `json:"status" yaml:"status"`
	TotalSections     int           `json:"total_sections" yaml:"total_sections"`
	CompletedSections int           `json:"completed_sections" yaml:"completed_sections"`
	TotalWordCount    int           `json:"total_word_count" yaml:"total_word_count"`
	ErrorMessage      string        `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// ProgressOf projects a session onto its Progress view.
func ProgressOf(s *GenerationSession) Progress {
	p := Progress{
		SessionID:         s.ID,
		Version:           s.Version,
		Status:            s.Status,
		TotalSections:     s.TotalSections,
		CompletedSections: s.CompletedSections,
		TotalWordCount:    s.TotalWordCount,
	}
	if s.ErrorMessage != nil {
		p.ErrorMessage = *s.ErrorMessage
	}
	return p
}

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's conversation history. Raw carries the
// provider's own encoding of the turn (for example reasoning blocks with
// signatures); when present it is sent back verbatim and never rewritten.
type Turn struct {
	Role    Role            `json:"role" yaml:"role"`
	Content string          `json:"content" yaml:"content"`
	Raw     json.RawMessage `json:"raw,omitempty" yaml:"-"`
}

// ExtractionMethod records how a section's text was recovered from a response.
type ExtractionMethod string

const (
	MethodDelimited   ExtractionMethod = "delimited"
	MethodFallbackRaw ExtractionMethod = "fallback-raw"
)

// Section is one generated part of the article. Sections live in memory
// until the article is assembled.
type Section struct {
	Ordinal int              `json:"ordinal" yaml:"ordinal"`
	Text    string           `json:"text" yaml:"text"`
	Method  ExtractionMethod `json:"method" yaml:"method"`
}
