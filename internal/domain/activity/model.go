package activity

import "time"

// Type represents the kind of engine event being audited.
type Type string

const (
	TypeLockAcquired     Type = "lock_acquired"
	TypeLockForced       Type = "lock_forced"
	TypeLockReleased     Type = "lock_released"
	TypeSessionStarted   Type = "session_started"
	TypeSessionFinalized Type = "session_finalized"
	TypeTaskStarted      Type = "task_started"
	TypeTaskPaused       Type = "task_paused"
	TypeTaskResumed      Type = "task_resumed"
	TypeTaskCompleted    Type = "task_completed"
	TypeTaskAbandoned    Type = "task_abandoned"
)

// Entry is one event in the audit log.
type Entry struct {
	ID           int64     `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	SessionID    *string   `json:"session_id,omitempty"`
	TaskID       *string   `json:"task_id,omitempty"`
	ActivityType Type      `json:"type"`
	Summary      string    `json:"summary"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
