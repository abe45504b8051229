package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/repository"
)

// LockRepository implements lock.Repository for SQLite
type LockRepository struct {
	db *DB
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(db *DB) *LockRepository {
	return &LockRepository{db: db}
}

// TryAcquire installs the candidate lock via a single upsert so the existence
// check and the write cannot interleave with a concurrent acquirer. The slot
// is taken when it is empty, expired at the candidate's acquire instant,
// already owned by the same holder, or force is set.
func (r *LockRepository) TryAcquire(ctx context.Context, candidate *lock.Lock, force bool) (*lock.Lock, bool, error) {
	query := `
		INSERT INTO locks (workspace_id, holder_id, session_id, acquired_at_ms, expires_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id) DO UPDATE SET
			holder_id = excluded.holder_id,
			session_id = excluded.session_id,
			acquired_at_ms = excluded.acquired_at_ms,
			expires_at_ms = excluded.expires_at_ms
		WHERE ?
			OR locks.expires_at_ms <= excluded.acquired_at_ms
			OR locks.holder_id = excluded.holder_id
	`

	result, err := r.db.ExecContext(ctx, query,
		candidate.WorkspaceID,
		candidate.HolderID,
		candidate.SessionID,
		candidate.AcquiredAt.UnixMilli(),
		candidate.ExpiresAt.UnixMilli(),
		force,
	)
	if err != nil {
		return nil, false, storageErr("acquire lock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, storageErr("acquire lock", err)
	}
	if rowsAffected > 0 {
		return candidate, true, nil
	}

	current, err := r.Get(ctx, candidate.WorkspaceID)
	if err != nil {
		// The holder may have released between the upsert and this read;
		// report the race as a conflict rather than inventing a winner.
		return nil, false, repository.ErrConflict
	}
	return current, false, nil
}

// Get returns the current lock row, expired or not
func (r *LockRepository) Get(ctx context.Context, workspaceID string) (*lock.Lock, error) {
	query := `
		SELECT workspace_id, holder_id, session_id, acquired_at_ms, expires_at_ms
		FROM locks
		WHERE workspace_id = ?
	`

	var l lock.Lock
	var acquiredMs, expiresMs int64
	err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(
		&l.WorkspaceID,
		&l.HolderID,
		&l.SessionID,
		&acquiredMs,
		&expiresMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get lock", err)
	}

	l.AcquiredAt = time.UnixMilli(acquiredMs).UTC()
	l.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	return &l, nil
}

// Delete removes the lock only if held by holderID
func (r *LockRepository) Delete(ctx context.Context, workspaceID, holderID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM locks WHERE workspace_id = ? AND holder_id = ?`,
		workspaceID, holderID)
	if err != nil {
		return false, storageErr("delete lock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("delete lock", err)
	}
	return rowsAffected > 0, nil
}
