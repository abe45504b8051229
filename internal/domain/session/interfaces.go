package session

import (
	"context"

	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/domain/lock"
)

// Repository provides persistence for sessions. Save persists the full
// snapshot atomically: readers never observe a partially written session.
type Repository interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// GetLive returns the single unfinalized session for a workspace.
	GetLive(ctx context.Context, workspaceID string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	ListFinalized(ctx context.Context, workspaceID string, limit int) ([]Summary, error)
}

// LockChecker reports current lock ownership for write guards.
type LockChecker interface {
	Check(ctx context.Context, workspaceID string) (*lock.Status, error)
}

// ActivityRecorder appends audit entries for session and task events.
type ActivityRecorder interface {
	Log(ctx context.Context, entry *activity.Entry) error
}
