// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EventType discriminates the payload of an Event.
type EventType string

const (
	EventStatus           EventType = "status"
	EventPhase            EventType = "phase"
	EventTextDelta        EventType = "text-delta"
	EventSectionCompleted EventType = "section-completed"
	EventWarning          EventType = "warning"
	EventError            EventType = "error"
	EventCompleted        EventType = "completed"
)

// Event is a live progress notification. Events are never persisted.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	// Status is set on status, error, and completed events.
	Status SessionStatus `json:"status,omitempty"`

	// Phase is set on phase events.
	Phase string `json:"phase,omitempty"`

	// Text carries the delta for text-delta and the section body for
	// section-completed.
	Text string `json:"text,omitempty"`

	// Section is the 1-based ordinal for section-completed.
	Section int `json:"section,omitempty"`

	// Message is a human-readable note for warning and error events.
	Message string `json:"message,omitempty"`

	CompletedSections int       `json:"completed_sections,omitempty"`
	TotalWordCount    int       `json:"total_word_count,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
