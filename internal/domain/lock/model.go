package lock

import "time"

// Lock is a time-bounded grant of exclusive ownership over a workspace.
// At most one non-expired Lock exists per workspace at any instant.
type Lock struct {
	WorkspaceID string    `json:"workspace_id"`
	HolderID    string    `json:"holder_id"`
	SessionID   string    `json:"session_id"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Status is the read-only view returned by Check. A stale lock (expired but
// not yet reclaimed) is a normal, displayable state, not an error.
type Status struct {
	Lock    *Lock `json:"lock,omitempty"`
	IsStale bool  `json:"is_stale"`
}
