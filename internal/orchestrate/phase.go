// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import "fmt"

// Phase is a state of the prompt sequence.
type Phase int

const (
	Planning Phase = iota
	TitleIntro
	Writing
	// CheckingCompletion is entered from Writing and never persisted.
	CheckingCompletion
	Completed
)

var phaseNames = map[Phase]string{
	Planning:           "Planning",
	TitleIntro:         "TitleIntro",
	Writing:            "WritingLoop",
	CheckingCompletion: "CheckingCompletion",
	Completed:          "Completed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Persisted reports whether entering p is recorded in session metadata.
func (p Phase) Persisted() bool {
	return p != CheckingCompletion
}

// transitions is the single table of legal phase moves. Failure is not a
// phase: any handler error ends the run and fails the session.
var transitions = map[Phase][]Phase{
	Planning:           {TitleIntro},
	TitleIntro:         {Writing, Completed},
	Writing:            {Writing, CheckingCompletion, Completed},
	CheckingCompletion: {Writing, Completed},
}

// CanMove reports whether the sequence may go from one phase to another.
func CanMove(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
