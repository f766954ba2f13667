// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package broadcast

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/article-engine/pkg/types"
)

var (
	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	phaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// TerminalSink renders events as styled lines. One TerminalSink may be
// registered for several sessions; writes are serialized.
type TerminalSink struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewTerminalSink writes to w. Text deltas are shown only when verbose.
func NewTerminalSink(w io.Writer, verbose bool) *TerminalSink {
	return &TerminalSink{w: w, verbose: verbose}
}

// Send writes one line for ev.
func (s *TerminalSink) Send(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Type == types.EventTextDelta {
		if !s.verbose {
			return nil
		}
		_, err := io.WriteString(s.w, ev.Text)
		return err
	}

	line := formatEvent(ev)
	if line == "" {
		return nil
	}
	if s.verbose {
		line = "\n" + line
	}
	_, err := fmt.Fprintf(s.w, "%s %s\n", sessionStyle.Render(shortID(ev.SessionID)), line)
	return err
}

func formatEvent(ev types.Event) string {
	switch ev.Type {
	case types.EventStatus:
		return phaseStyle.Render("status " + string(ev.Status))
	case types.EventPhase:
		return phaseStyle.Render("phase " + ev.Phase)
	case types.EventSectionCompleted:
		return sectionStyle.Render(fmt.Sprintf("section %d done (%d words so far)", ev.Section, ev.TotalWordCount))
	case types.EventWarning:
		return warningStyle.Render("warning: " + ev.Message)
	case types.EventError:
		return errorStyle.Render("error: " + ev.Message)
	case types.EventCompleted:
		return doneStyle.Render(fmt.Sprintf("completed: %d sections, %d words", ev.CompletedSections, ev.TotalWordCount))
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
