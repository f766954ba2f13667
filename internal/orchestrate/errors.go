// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import "fmt"

// ModelCallError is a provider failure. It always fails the session.
type ModelCallError struct {
	Phase Phase
	Err   error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed during %s: %v", e.Phase, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// PersistenceError is a session store write failure. The transition it
// was recording is treated as not having happened.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
