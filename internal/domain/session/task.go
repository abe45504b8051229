package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/baton-dev/baton/internal/clock"
	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/google/uuid"
)

// Task state machine. All guard failures return a typed error before any
// state is touched, so a rejected command leaves the session unchanged both
// in memory and in storage.

// StartTask creates a new active task. A currently active task is first
// auto-paused, preserving the at-most-one-active invariant; auto-pausing does
// not open a session pause interval because work continues immediately on the
// new task.
func (s *Service) StartTask(ctx context.Context, sess *Session, title string) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidInput
	}
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	if current := sess.ActiveTask(); current != nil {
		current.Status = TaskPaused
	}

	now := s.now()
	task := Task{
		ID:         uuid.NewString(),
		Title:      title,
		StartedAt:  now,
		Status:     TaskActive,
		Iterations: 1,
		ToolUsage:  map[string]int{},
	}
	sess.Tasks = append(sess.Tasks, task)
	sess.ActiveTaskID = &sess.Tasks[len(sess.Tasks)-1].ID

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	started := &sess.Tasks[len(sess.Tasks)-1]
	s.logActivity(ctx, sess, started, activity.TypeTaskStarted, fmt.Sprintf("task started: %s", title))
	return started, nil
}

// PauseTask pauses the active task and opens a session pause interval.
func (s *Service) PauseTask(ctx context.Context, sess *Session, reason string) (*Task, error) {
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	task := sess.ActiveTask()
	if task == nil {
		return nil, ErrNoActiveTask
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	task.Status = TaskPaused
	sess.ActiveTaskID = nil
	sess.Timing.Pauses = append(sess.Timing.Pauses, Pause{
		Interval: clock.Interval{Start: s.now()},
		Reason:   reason,
	})

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logActivity(ctx, sess, task, activity.TypeTaskPaused, fmt.Sprintf("task paused: %s", task.Title))
	return task, nil
}

// ResumeTask reactivates the most recently started paused task, closing the
// open pause interval and adding its length to pause_minutes.
func (s *Service) ResumeTask(ctx context.Context, sess *Session) (*Task, error) {
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	if sess.ActiveTask() != nil {
		return nil, ErrActiveTaskExists
	}
	task := sess.LastPausedTask()
	if task == nil {
		return nil, ErrNoPausedTask
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	now := s.now()
	s.closeOpenPause(sess, now)
	task.Status = TaskActive
	sess.ActiveTaskID = &task.ID

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logActivity(ctx, sess, task, activity.TypeTaskResumed, fmt.Sprintf("task resumed: %s", task.Title))
	return task, nil
}

// IterateTask marks a repeated attempt at the active task's unit of work.
func (s *Service) IterateTask(ctx context.Context, sess *Session) (*Task, error) {
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	task := sess.ActiveTask()
	if task == nil {
		return nil, ErrNoActiveTask
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	task.Iterations++

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return task, nil
}

// CompleteTask moves the active task to its terminal completed state.
func (s *Service) CompleteTask(ctx context.Context, sess *Session) (*Task, error) {
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	task := sess.ActiveTask()
	if task == nil {
		return nil, ErrNoActiveTask
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	s.endTask(task, TaskCompleted)
	sess.ActiveTaskID = nil

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logActivity(ctx, sess, task, activity.TypeTaskCompleted, fmt.Sprintf("task completed: %s", task.Title))
	return task, nil
}

// AbandonTask moves the active task, or failing that the most recently paused
// one, to its terminal abandoned state. Abandoning a paused task also closes
// the open pause interval.
func (s *Service) AbandonTask(ctx context.Context, sess *Session, reason string) (*Task, error) {
	if sess.Finalized {
		return nil, ErrSessionFinalized
	}
	task := sess.ActiveTask()
	if task == nil {
		task = sess.LastPausedTask()
	}
	if task == nil {
		return nil, ErrNoActiveTask
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}

	s.closeOpenPause(sess, s.now())
	s.endTask(task, TaskAbandoned)
	sess.ActiveTaskID = nil

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	summary := fmt.Sprintf("task abandoned: %s", task.Title)
	if reason != "" {
		summary = fmt.Sprintf("%s (%s)", summary, reason)
	}
	s.logActivity(ctx, sess, task, activity.TypeTaskAbandoned, summary)
	return task, nil
}

// endTask stamps the terminal fields. DurationMinutes is raw wall time from
// start to end; see the Task doc comment.
func (s *Service) endTask(task *Task, status TaskStatus) {
	now := s.now()
	task.EndedAt = &now
	task.Status = status
	minutes := clock.MinutesBetween(task.StartedAt, now)
	task.DurationMinutes = &minutes
}
