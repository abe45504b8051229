package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewTestFileDB creates a file-backed database so multiple connections share
// one store; in-memory databases are per-connection.
func NewTestFileDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestWorkspace(t *testing.T, db *DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO workspaces (id, name) VALUES (?, ?)`, id, "Workspace "+id)
	require.NoError(t, err)
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"workspaces",
		"locks",
		"sessions",
		"tasks",
		"activity_log",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

// TestLiveSessionIndex verifies the one-live-session-per-workspace constraint
func TestLiveSessionIndex(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, workspace_id, holder_id, started_at, finalized)
		 VALUES ('s1', 'ws1', 'agent-a', CURRENT_TIMESTAMP, 0)`)
	require.NoError(t, err)

	// A second live session for the same workspace must be rejected.
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, workspace_id, holder_id, started_at, finalized)
		 VALUES ('s2', 'ws1', 'agent-b', CURRENT_TIMESTAMP, 0)`)
	require.Error(t, err)

	// A finalized one is fine.
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, workspace_id, holder_id, started_at, finalized)
		 VALUES ('s3', 'ws1', 'agent-b', CURRENT_TIMESTAMP, 1)`)
	require.NoError(t, err)
}

// TestTaskStatusConstraint verifies the tasks status CHECK constraint
func TestTaskStatusConstraint(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, workspace_id, holder_id, started_at)
		 VALUES ('s1', 'ws1', 'agent-a', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO tasks (id, session_id, title, started_at, status, position)
		 VALUES ('t1', 's1', 'Task', CURRENT_TIMESTAMP, 'sleeping', 0)`)
	require.Error(t, err, "should fail with invalid status")
}
