package activity

import "context"

// Repository provides persistence for the activity log.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}

// ListOptions provides filtering for listing activity.
type ListOptions struct {
	WorkspaceID  string
	SessionID    *string
	ActivityType *Type
	Limit        int
	Offset       int
}
