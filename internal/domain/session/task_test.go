package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTaskService(t *testing.T, sess *session.Session) *session.Service {
	t.Helper()
	sessionsRepo := &mocks.SessionRepository{}
	sessionsRepo.On("Save", mock.Anything, sess).Return(nil)
	return session.NewService(sessionsRepo, ownedChecker(sess), nil, nil)
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	svc := newTaskService(t, sess)

	task, err := svc.StartTask(ctx, sess, "implement parser")
	require.NoError(t, err)
	require.Equal(t, session.TaskActive, task.Status)
	require.Equal(t, 1, task.Iterations)
	require.NotEmpty(t, task.ID)
	require.Equal(t, task.ID, *sess.ActiveTaskID)

	paused, err := svc.PauseTask(ctx, sess, "lunch")
	require.NoError(t, err)
	require.Equal(t, task.ID, paused.ID)
	require.Equal(t, session.TaskPaused, paused.Status)
	require.Nil(t, sess.ActiveTaskID)
	require.Len(t, sess.Timing.Pauses, 1)
	require.Equal(t, "lunch", sess.Timing.Pauses[0].Reason)
	require.False(t, sess.Timing.Pauses[0].Closed())

	resumed, err := svc.ResumeTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, task.ID, resumed.ID)
	require.Equal(t, session.TaskActive, resumed.Status)
	require.True(t, sess.Timing.Pauses[0].Closed())
	require.Equal(t, task.ID, *sess.ActiveTaskID)

	iterated, err := svc.IterateTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, 2, iterated.Iterations)

	iterated, err = svc.IterateTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, 3, iterated.Iterations)

	done, err := svc.CompleteTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, session.TaskCompleted, done.Status)
	require.True(t, done.Status.Terminal())
	require.NotNil(t, done.EndedAt)
	require.NotNil(t, done.DurationMinutes)
	require.Nil(t, sess.ActiveTaskID)
}

func TestStartTask_AutoPausesCurrent(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	svc := newTaskService(t, sess)

	first, err := svc.StartTask(ctx, sess, "task one")
	require.NoError(t, err)

	second, err := svc.StartTask(ctx, sess, "task two")
	require.NoError(t, err)

	require.Equal(t, session.TaskPaused, sess.Task(first.ID).Status)
	require.Equal(t, session.TaskActive, second.Status)
	require.Equal(t, second.ID, *sess.ActiveTaskID)
	// Work continues immediately, so the switch opens no pause interval.
	require.Empty(t, sess.Timing.Pauses)
}

func TestStartTask_EmptyTitle(t *testing.T) {
	sess := liveSession()
	svc := newTaskService(t, sess)
	_, err := svc.StartTask(context.Background(), sess, "  ")
	require.ErrorIs(t, err, session.ErrInvalidInput)
	require.Empty(t, sess.Tasks)
}

func TestPauseTask_NoActive(t *testing.T) {
	sess := liveSession()
	svc := newTaskService(t, sess)
	_, err := svc.PauseTask(context.Background(), sess, "")
	require.ErrorIs(t, err, session.ErrNoActiveTask)
}

func TestResumeTask_Guards(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	svc := newTaskService(t, sess)

	_, err := svc.ResumeTask(ctx, sess)
	require.ErrorIs(t, err, session.ErrNoPausedTask)

	_, err = svc.StartTask(ctx, sess, "task one")
	require.NoError(t, err)
	_, err = svc.ResumeTask(ctx, sess)
	require.ErrorIs(t, err, session.ErrActiveTaskExists)
}

func TestResumeTask_MostRecentlyStarted(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	sess.Tasks = []session.Task{
		{ID: "t1", Title: "older", StartedAt: time.Now().Add(-time.Hour), Status: session.TaskPaused},
		{ID: "t2", Title: "newer", StartedAt: time.Now(), Status: session.TaskPaused},
	}
	svc := newTaskService(t, sess)

	resumed, err := svc.ResumeTask(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, "t2", resumed.ID)
}

func TestIterateTask_NoActive(t *testing.T) {
	sess := liveSession()
	svc := newTaskService(t, sess)
	_, err := svc.IterateTask(context.Background(), sess)
	require.ErrorIs(t, err, session.ErrNoActiveTask)
}

func TestCompleteTask_NoActive(t *testing.T) {
	sess := liveSession()
	svc := newTaskService(t, sess)
	_, err := svc.CompleteTask(context.Background(), sess)
	require.ErrorIs(t, err, session.ErrNoActiveTask)
}

func TestAbandonTask_PausedFallback(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	svc := newTaskService(t, sess)

	task, err := svc.StartTask(ctx, sess, "doomed work")
	require.NoError(t, err)
	_, err = svc.PauseTask(ctx, sess, "blocked")
	require.NoError(t, err)

	abandoned, err := svc.AbandonTask(ctx, sess, "requirements changed")
	require.NoError(t, err)
	require.Equal(t, task.ID, abandoned.ID)
	require.Equal(t, session.TaskAbandoned, abandoned.Status)
	require.NotNil(t, abandoned.EndedAt)
	require.True(t, sess.Timing.Pauses[0].Closed())
}

func TestAbandonTask_NoTask(t *testing.T) {
	sess := liveSession()
	svc := newTaskService(t, sess)
	_, err := svc.AbandonTask(context.Background(), sess, "")
	require.ErrorIs(t, err, session.ErrNoActiveTask)
}

func TestTaskOps_RejectedByStaleLock(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	sess.Tasks = []session.Task{
		{ID: "t1", Title: "in flight", StartedAt: time.Now(), Status: session.TaskActive},
	}
	sess.ActiveTaskID = &sess.Tasks[0].ID

	checker := &mocks.LockChecker{}
	checker.On("Check", ctx, "ws1").Return(&lock.Status{
		Lock: &lock.Lock{WorkspaceID: "ws1", HolderID: "agent-b", SessionID: "other"},
	}, nil)
	sessionsRepo := &mocks.SessionRepository{}
	svc := session.NewService(sessionsRepo, checker, nil, nil)

	_, err := svc.PauseTask(ctx, sess, "")
	var stale *session.StaleWriteError
	require.ErrorAs(t, err, &stale)

	// Rejected command leaves the session untouched.
	require.Equal(t, session.TaskActive, sess.Tasks[0].Status)
	require.NotNil(t, sess.ActiveTaskID)
	require.Empty(t, sess.Timing.Pauses)
	sessionsRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTaskOps_RejectedWhenFinalized(t *testing.T) {
	ctx := context.Background()
	sess := liveSession()
	sess.Finalized = true
	svc := session.NewService(&mocks.SessionRepository{}, &mocks.LockChecker{}, nil, nil)

	_, err := svc.StartTask(ctx, sess, "too late")
	require.ErrorIs(t, err, session.ErrSessionFinalized)
	_, err = svc.IterateTask(ctx, sess)
	require.ErrorIs(t, err, session.ErrSessionFinalized)
}
