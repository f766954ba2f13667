// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guard holds the cross-cutting safety checks applied by the session
// store and the orchestrator: input validation, text sanitization before
// persistence, status transition rules, and the writing-loop iteration cap.
package guard

import (
	"fmt"
	"strings"

	"github.com/pdiddy/article-engine/pkg/types"
)

// Sanitize removes control bytes that the persistence layer must not see
// and repairs invalid UTF-8. Tab, newline, and carriage return are kept.
func Sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// SanitizePtr sanitizes an optional string in place.
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Sanitize(*s)
	return &v
}

// ValidateOutline rejects outlines that are empty once sanitized.
func ValidateOutline(outline string) error {
	if strings.TrimSpace(Sanitize(outline)) == "" {
		return fmt.Errorf("%w: outline must not be empty", types.ErrInvalidInput)
	}
	return nil
}

// ValidateParentID rejects a parent document id that is empty once sanitized.
func ValidateParentID(parentID string) error {
	if strings.TrimSpace(Sanitize(parentID)) == "" {
		return fmt.Errorf("%w: parent id must not be empty", types.ErrInvalidInput)
	}
	return nil
}

// transitions lists the allowed status moves. Terminal states have none.
var transitions = map[types.SessionStatus][]types.SessionStatus{
	types.StatusInitializing:  {types.StatusOrchestrating, types.StatusFailed},
	types.StatusOrchestrating: {types.StatusCompleted, types.StatusFailed},
}

// CanTransition reports whether a session may move from one status to
// another. Staying in the same non-terminal status is allowed.
func CanTransition(from, to types.SessionStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IterationCap bounds the number of writing-loop iterations.
type IterationCap struct {
	max int
	n   int
}

// NewIterationCap returns a cap allowing max iterations.
func NewIterationCap(max int) *IterationCap {
	return &IterationCap{max: max}
}

// Reached reports whether no further iterations are allowed.
func (c *IterationCap) Reached() bool {
	return c.n >= c.max
}

// Take records one iteration.
func (c *IterationCap) Take() {
	c.n++
}

// Count returns the number of iterations taken.
func (c *IterationCap) Count() int {
	return c.n
}

// Max returns the configured limit.
func (c *IterationCap) Max() int {
	return c.max
}
