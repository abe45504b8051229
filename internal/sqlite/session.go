package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/repository"
)

// SessionRepository implements session.Repository for SQLite.
// Save rewrites the session row and its task rows in one transaction, so a
// loaded session is always a consistent snapshot.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts the live session for a workspace
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	pauses, breakdown, tools, err := marshalCounters(sess)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (
			id, workspace_id, holder_id, started_at, ended_at,
			total_minutes, active_minutes, pause_minutes,
			pauses, activity_breakdown, tool_usage, active_task_id, finalized
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.ID,
		sess.WorkspaceID,
		sess.HolderID,
		sess.StartedAt,
		sess.EndedAt,
		sess.Timing.TotalMinutes,
		sess.Timing.ActiveMinutes,
		sess.Timing.PauseMinutes,
		pauses,
		breakdown,
		tools,
		sess.ActiveTaskID,
		sess.Finalized,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return storageErr("create session", err)
	}
	return nil
}

// Get retrieves a session snapshot by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	return r.getWhere(ctx, `id = ?`, id)
}

// GetLive returns the single unfinalized session for a workspace
func (r *SessionRepository) GetLive(ctx context.Context, workspaceID string) (*session.Session, error) {
	return r.getWhere(ctx, `workspace_id = ? AND finalized = 0`, workspaceID)
}

func (r *SessionRepository) getWhere(ctx context.Context, where string, arg string) (*session.Session, error) {
	query := `
		SELECT
			id, workspace_id, holder_id, started_at, ended_at,
			total_minutes, active_minutes, pause_minutes,
			pauses, activity_breakdown, tool_usage, active_task_id, finalized
		FROM sessions
		WHERE ` + where

	var sess session.Session
	var endedAt sql.NullTime
	var activeTaskID sql.NullString
	var pauses, breakdown, tools string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&sess.ID,
		&sess.WorkspaceID,
		&sess.HolderID,
		&sess.StartedAt,
		&endedAt,
		&sess.Timing.TotalMinutes,
		&sess.Timing.ActiveMinutes,
		&sess.Timing.PauseMinutes,
		&pauses,
		&breakdown,
		&tools,
		&activeTaskID,
		&sess.Finalized,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}

	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	if activeTaskID.Valid {
		sess.ActiveTaskID = &activeTaskID.String
	}
	if err := json.Unmarshal([]byte(pauses), &sess.Timing.Pauses); err != nil {
		return nil, fmt.Errorf("failed to decode pauses: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdown), &sess.ActivityBreakdown); err != nil {
		return nil, fmt.Errorf("failed to decode activity breakdown: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &sess.ToolUsage); err != nil {
		return nil, fmt.Errorf("failed to decode tool usage: %w", err)
	}

	tasks, err := r.loadTasks(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Tasks = tasks

	return &sess, nil
}

// Save persists the full session snapshot atomically
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	pauses, breakdown, tools, err := marshalCounters(sess)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("save session", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sessions
		SET ended_at = ?, total_minutes = ?, active_minutes = ?, pause_minutes = ?,
		    pauses = ?, activity_breakdown = ?, tool_usage = ?,
		    active_task_id = ?, finalized = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		sess.EndedAt,
		sess.Timing.TotalMinutes,
		sess.Timing.ActiveMinutes,
		sess.Timing.PauseMinutes,
		pauses,
		breakdown,
		tools,
		sess.ActiveTaskID,
		sess.Finalized,
		sess.ID,
	)
	if err != nil {
		return storageErr("save session", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("save session", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE session_id = ?`, sess.ID); err != nil {
		return storageErr("save session tasks", err)
	}
	for i := range sess.Tasks {
		if err := insertTask(ctx, tx, sess.ID, i, &sess.Tasks[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("save session", err)
	}
	return nil
}

// ListFinalized returns finalized session summaries, newest first
func (r *SessionRepository) ListFinalized(ctx context.Context, workspaceID string, limit int) ([]session.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT s.id, s.holder_id, s.started_at, s.ended_at,
		       s.total_minutes, s.active_minutes,
		       (SELECT COUNT(*) FROM tasks t WHERE t.session_id = s.id)
		FROM sessions s
		WHERE s.workspace_id = ? AND s.finalized = 1
		ORDER BY s.started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	defer rows.Close()

	var summaries []session.Summary
	for rows.Next() {
		var sum session.Summary
		var endedAt sql.NullTime
		if err := rows.Scan(&sum.SessionID, &sum.HolderID, &sum.StartedAt, &endedAt,
			&sum.TotalMinutes, &sum.ActiveMinutes, &sum.TaskCount); err != nil {
			return nil, storageErr("scan session summary", err)
		}
		if endedAt.Valid {
			sum.EndedAt = &endedAt.Time
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list sessions", err)
	}

	return summaries, nil
}

func (r *SessionRepository) loadTasks(ctx context.Context, sessionID string) ([]session.Task, error) {
	query := `
		SELECT id, title, started_at, ended_at, status, iterations, duration_minutes, tool_usage
		FROM tasks
		WHERE session_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, storageErr("load tasks", err)
	}
	defer rows.Close()

	tasks := []session.Task{}
	for rows.Next() {
		var task session.Task
		var endedAt sql.NullTime
		var duration sql.NullInt64
		var tools string
		if err := rows.Scan(&task.ID, &task.Title, &task.StartedAt, &endedAt,
			&task.Status, &task.Iterations, &duration, &tools); err != nil {
			return nil, storageErr("scan task", err)
		}
		if endedAt.Valid {
			task.EndedAt = &endedAt.Time
		}
		if duration.Valid {
			minutes := int(duration.Int64)
			task.DurationMinutes = &minutes
		}
		if err := json.Unmarshal([]byte(tools), &task.ToolUsage); err != nil {
			return nil, fmt.Errorf("failed to decode task tool usage: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load tasks", err)
	}

	return tasks, nil
}

func insertTask(ctx context.Context, tx *sql.Tx, sessionID string, position int, task *session.Task) error {
	tools, err := json.Marshal(task.ToolUsage)
	if err != nil {
		return fmt.Errorf("failed to encode task tool usage: %w", err)
	}

	var duration *int64
	if task.DurationMinutes != nil {
		d := int64(*task.DurationMinutes)
		duration = &d
	}

	query := `
		INSERT INTO tasks (id, session_id, title, started_at, ended_at, status,
		                   iterations, duration_minutes, tool_usage, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		task.ID, sessionID, task.Title, task.StartedAt, task.EndedAt,
		task.Status, task.Iterations, duration, string(tools), position); err != nil {
		return storageErr("insert task", err)
	}
	return nil
}

func marshalCounters(sess *session.Session) (pauses, breakdown, tools string, err error) {
	p, err := json.Marshal(sess.Timing.Pauses)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode pauses: %w", err)
	}
	b, err := json.Marshal(sess.ActivityBreakdown)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode activity breakdown: %w", err)
	}
	t, err := json.Marshal(sess.ToolUsage)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode tool usage: %w", err)
	}
	return string(p), string(b), string(t), nil
}
