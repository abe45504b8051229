package sqlite

import (
	"context"

	"github.com/baton-dev/baton/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log appends an activity entry
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	query := `
		INSERT INTO activity_log (workspace_id, session_id, task_id, activity_type, summary, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.WorkspaceID,
		entry.SessionID,
		entry.TaskID,
		entry.ActivityType,
		entry.Summary,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return storageErr("log activity", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// List returns activity entries with filtering, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `
		SELECT id, workspace_id, session_id, task_id, activity_type, summary, details, created_at
		FROM activity_log
		WHERE workspace_id = ?
	`
	args := []any{opts.WorkspaceID}

	if opts.SessionID != nil {
		query += ` AND session_id = ?`
		args = append(args, *opts.SessionID)
	}
	if opts.ActivityType != nil {
		query += ` AND activity_type = ?`
		args = append(args, *opts.ActivityType)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list activity", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var entry activity.Entry
		var details *string
		if err := rows.Scan(&entry.ID, &entry.WorkspaceID, &entry.SessionID, &entry.TaskID,
			&entry.ActivityType, &entry.Summary, &details, &entry.CreatedAt); err != nil {
			return nil, storageErr("scan activity entry", err)
		}
		if details != nil {
			entry.Details = *details
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list activity", err)
	}

	return entries, nil
}
