package integration_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/domain/workspace"
	"github.com/baton-dev/baton/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db *sqlite.DB

	workspaceSvc *workspace.Service
	activitySvc  *activity.Service
	sessionSvc   *session.Service

	lockRepo *sqlite.LockRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	workspaceRepo := sqlite.NewWorkspaceRepository(db)
	lockRepo := sqlite.NewLockRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	activityRepo := sqlite.NewActivityRepository(db)

	workspaceSvc := workspace.NewService(workspaceRepo, nil)
	activitySvc := activity.NewService(activityRepo, nil)
	// Session guards go through a manager so staleness semantics match prod.
	sessionSvc := session.NewService(sessionRepo, lock.NewManager(lockRepo, time.Hour, nil), activitySvc, nil)

	return &testEnv{
		db:           db,
		workspaceSvc: workspaceSvc,
		activitySvc:  activitySvc,
		sessionSvc:   sessionSvc,
		lockRepo:     lockRepo,
	}
}

func (env *testEnv) manager(lease time.Duration) *lock.Manager {
	return lock.NewManager(env.lockRepo, lease, nil)
}

func (env *testEnv) createWorkspace(t *testing.T, ctx context.Context) *workspace.Workspace {
	t.Helper()
	ws, err := env.workspaceSvc.Create(ctx, workspace.CreateRequest{Name: "shared repo"})
	require.NoError(t, err)
	return ws
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.createWorkspace(t, ctx)
	mgr := env.manager(time.Hour)

	_, err := mgr.Acquire(ctx, ws.ID, "agent-a", "sess1", false)
	require.NoError(t, err)

	sess, err := env.sessionSvc.Start(ctx, ws.ID, "agent-a", "sess1")
	require.NoError(t, err)

	task, err := env.sessionSvc.StartTask(ctx, sess, "fix flaky test")
	require.NoError(t, err)
	require.NoError(t, env.sessionSvc.RecordToolUsage(ctx, sess, "edit"))
	require.NoError(t, env.sessionSvc.RecordToolUsage(ctx, sess, "bash"))

	_, err = env.sessionSvc.PauseTask(ctx, sess, "coffee")
	require.NoError(t, err)
	_, err = env.sessionSvc.ResumeTask(ctx, sess)
	require.NoError(t, err)
	_, err = env.sessionSvc.IterateTask(ctx, sess)
	require.NoError(t, err)
	done, err := env.sessionSvc.CompleteTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, task.ID, done.ID)
	require.Equal(t, 2, done.Iterations)

	require.NoError(t, env.sessionSvc.Finalize(ctx, sess))
	require.NoError(t, mgr.Release(ctx, ws.ID, "agent-a"))

	// Everything survives a cold reload.
	reloaded, err := env.sessionSvc.Get(ctx, "sess1")
	require.NoError(t, err)
	require.True(t, reloaded.Finalized)
	require.Len(t, reloaded.Tasks, 1)
	require.Equal(t, session.TaskCompleted, reloaded.Tasks[0].Status)
	require.Equal(t, 2, reloaded.ToolUsage["edit"]+reloaded.ToolUsage["bash"])
	require.Len(t, reloaded.Timing.Pauses, 1)
	require.True(t, reloaded.Timing.Pauses[0].Closed())

	_, err = env.sessionSvc.Live(ctx, ws.ID)
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	history, err := env.sessionSvc.History(ctx, ws.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "sess1", history[0].SessionID)
	require.Equal(t, 1, history[0].TaskCount)

	entries, err := env.activitySvc.Recent(ctx, activity.ListOptions{WorkspaceID: ws.ID})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestLockContentionAndTakeover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.createWorkspace(t, ctx)
	mgr := env.manager(time.Hour)

	_, err := mgr.Acquire(ctx, ws.ID, "agent-a", "sess-a", false)
	require.NoError(t, err)
	sessA, err := env.sessionSvc.Start(ctx, ws.ID, "agent-a", "sess-a")
	require.NoError(t, err)

	// B cannot take a valid lease without force.
	_, err = mgr.Acquire(ctx, ws.ID, "agent-b", "sess-b", false)
	var held *lock.HeldError
	require.ErrorAs(t, err, &held)
	require.Equal(t, "agent-a", held.HolderID)

	// Forced takeover: B owns the lock, A's live session is orphaned.
	_, err = mgr.Acquire(ctx, ws.ID, "agent-b", "sess-b", true)
	require.NoError(t, err)

	orphan, err := env.sessionSvc.FinalizeOrphaned(ctx, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, orphan)
	require.Equal(t, "sess-a", orphan.ID)
	require.True(t, orphan.Finalized)

	sessB, err := env.sessionSvc.Start(ctx, ws.ID, "agent-b", "sess-b")
	require.NoError(t, err)

	// A's writes are now rejected.
	err = env.sessionSvc.Save(ctx, sessA)
	var stale *session.StaleWriteError
	require.ErrorAs(t, err, &stale)
	require.Equal(t, "sess-b", stale.LockSessionID)

	// B works normally.
	_, err = env.sessionSvc.StartTask(ctx, sessB, "continue where a left off")
	require.NoError(t, err)

	// A cannot release B's lock either.
	err = mgr.Release(ctx, ws.ID, "agent-a")
	var notOwner *lock.NotOwnerError
	require.ErrorAs(t, err, &notOwner)
}

func TestStaleLeaseReclaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.createWorkspace(t, ctx)

	shortMgr := env.manager(20 * time.Millisecond)
	_, err := shortMgr.Acquire(ctx, ws.ID, "agent-a", "sess-a", false)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	status, err := shortMgr.Check(ctx, ws.ID)
	require.NoError(t, err)
	require.True(t, status.IsStale)

	// A lapsed lease needs no force.
	mgr := env.manager(time.Hour)
	l, err := mgr.Acquire(ctx, ws.ID, "agent-b", "sess-b", false)
	require.NoError(t, err)
	require.Equal(t, "agent-b", l.HolderID)
}

func TestHeartbeatLosesLeaseOnTakeover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ws := env.createWorkspace(t, ctx)

	mgrA := env.manager(200 * time.Millisecond)
	_, err := mgrA.Acquire(ctx, ws.ID, "agent-a", "sess-a", false)
	require.NoError(t, err)

	lost := make(chan error, 1)
	hb := lock.NewHeartbeat(mgrA, 20*time.Millisecond, nil)
	hb.Start(ws.ID, "agent-a", "sess-a", func(err error) { lost <- err })
	defer hb.Stop()

	// The heartbeat outlives several lease lengths on its own.
	time.Sleep(500 * time.Millisecond)
	status, err := mgrA.Check(ctx, ws.ID)
	require.NoError(t, err)
	require.False(t, status.IsStale)
	require.Equal(t, "agent-a", status.Lock.HolderID)

	// A forced takeover makes the next renewal fail.
	mgrB := env.manager(time.Hour)
	_, err = mgrB.Acquire(ctx, ws.ID, "agent-b", "sess-b", true)
	require.NoError(t, err)

	select {
	case renewErr := <-lost:
		var held *lock.HeldError
		require.ErrorAs(t, renewErr, &held)
		require.Equal(t, "agent-b", held.HolderID)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never reported the lost lease")
	}

	status, err = mgrB.Check(ctx, ws.ID)
	require.NoError(t, err)
	require.Equal(t, "agent-b", status.Lock.HolderID)
}
