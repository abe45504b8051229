package lock

import (
	"fmt"
	"time"
)

// HeldError is returned by a non-forced acquire when another holder owns a
// valid lease. It carries enough detail for the caller to decide whether to
// wait for expiry or force.
type HeldError struct {
	WorkspaceID string    `json:"workspace_id"`
	HolderID    string    `json:"holder_id"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("workspace %s locked by %s until %s", e.WorkspaceID, e.HolderID, e.ExpiresAt.Format(time.RFC3339))
}

// NotOwnerError is returned when release is attempted by a holder that does
// not own the lock. The lock, if any, is left untouched.
type NotOwnerError struct {
	WorkspaceID string `json:"workspace_id"`
	HolderID    string `json:"holder_id"`
	Current     *Lock  `json:"current,omitempty"`
}

func (e *NotOwnerError) Error() string {
	if e.Current == nil {
		return fmt.Sprintf("workspace %s is not locked", e.WorkspaceID)
	}
	return fmt.Sprintf("workspace %s is locked by %s, not %s", e.WorkspaceID, e.Current.HolderID, e.HolderID)
}
