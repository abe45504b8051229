package sqlite

import (
	"context"
	"database/sql"

	"github.com/baton-dev/baton/internal/domain/workspace"
	"github.com/baton-dev/baton/internal/repository"
)

// WorkspaceRepository implements workspace.Repository for SQLite
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create creates a new workspace
func (r *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, root_path, created_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.RootPath, ws.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return storageErr("create workspace", err)
	}
	return nil
}

// Get retrieves a workspace by ID
func (r *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	query := `SELECT id, name, root_path, created_at FROM workspaces WHERE id = ?`

	var ws workspace.Workspace
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.RootPath, &ws.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get workspace", err)
	}
	return &ws, nil
}

// GetDefault returns the oldest workspace
func (r *WorkspaceRepository) GetDefault(ctx context.Context) (*workspace.Workspace, error) {
	query := `SELECT id, name, root_path, created_at FROM workspaces ORDER BY created_at ASC LIMIT 1`

	var ws workspace.Workspace
	err := r.db.QueryRowContext(ctx, query).Scan(&ws.ID, &ws.Name, &ws.RootPath, &ws.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get default workspace", err)
	}
	return &ws, nil
}

// List returns workspace summaries with session counts
func (r *WorkspaceRepository) List(ctx context.Context) ([]workspace.Summary, error) {
	query := `
		SELECT w.id, w.name, w.created_at,
		       (SELECT COUNT(*) FROM sessions s WHERE s.workspace_id = w.id),
		       (SELECT COUNT(*) FROM sessions s WHERE s.workspace_id = w.id AND s.finalized = 1)
		FROM workspaces w
		ORDER BY w.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list workspaces", err)
	}
	defer rows.Close()

	var summaries []workspace.Summary
	for rows.Next() {
		var sum workspace.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CreatedAt, &sum.SessionCount, &sum.FinalizedSessions); err != nil {
			return nil, storageErr("scan workspace summary", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list workspaces", err)
	}

	return summaries, nil
}
