package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound indicates no live session exists for the operation.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFinalized indicates a mutation was attempted on an immutable
	// historical session.
	ErrSessionFinalized = errors.New("session already finalized")
	// ErrNoActiveTask indicates the operation requires an active task.
	ErrNoActiveTask = errors.New("no active task")
	// ErrNoPausedTask indicates the operation requires a paused task.
	ErrNoPausedTask = errors.New("no paused task")
	// ErrActiveTaskExists indicates resume was called while a task is active.
	ErrActiveTaskExists = errors.New("a task is already active")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
)

// StaleWriteError is returned when a mutation is attempted after the caller's
// lease was superseded: the workspace lock no longer names the caller's
// session.
type StaleWriteError struct {
	SessionID     string `json:"session_id"`
	LockSessionID string `json:"lock_session_id,omitempty"`
	LockHolderID  string `json:"lock_holder_id,omitempty"`
}

func (e *StaleWriteError) Error() string {
	if e.LockSessionID == "" {
		return fmt.Sprintf("session %s no longer holds the workspace lock", e.SessionID)
	}
	return fmt.Sprintf("session %s superseded by session %s (holder %s)", e.SessionID, e.LockSessionID, e.LockHolderID)
}
