package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baton-dev/baton/internal/clock"
	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/repository"
)

// Service handles session metadata operations. Every mutation is guarded by
// the workspace lock: the current lock must name the session being written,
// otherwise the caller's lease was superseded and the write is stale.
type Service struct {
	sessions   Repository
	locks      LockChecker
	activities ActivityRecorder
	logger     *slog.Logger
	now        clock.NowFunc
}

// NewService creates a new session service.
func NewService(sessions Repository, locks LockChecker, activities ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		sessions:   sessions,
		locks:      locks,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// Start creates the live session for a workspace. The caller must already
// hold the workspace lock under the same session ID.
func (s *Service) Start(ctx context.Context, workspaceID, holderID, sessionID string) (*Session, error) {
	if workspaceID == "" || holderID == "" || sessionID == "" {
		return nil, ErrInvalidInput
	}

	sess := &Session{
		ID:                sessionID,
		WorkspaceID:       workspaceID,
		HolderID:          holderID,
		StartedAt:         s.now(),
		Timing:            Timing{Pauses: []Pause{}},
		ActivityBreakdown: map[string]int{},
		ToolUsage:         map[string]int{},
		Tasks:             []Task{},
	}

	if err := s.guardWrite(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logActivity(ctx, sess, nil, activity.TypeSessionStarted, fmt.Sprintf("session started by %s", holderID))
	return sess, nil
}

// Get loads a session snapshot by ID. Read-only: callers may inspect
// finalized sessions freely.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// Live returns the unfinalized session for a workspace, or ErrSessionNotFound
// when the live slot is empty.
func (s *Service) Live(ctx context.Context, workspaceID string) (*Session, error) {
	sess, err := s.sessions.GetLive(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading live session: %w", err)
	}
	return sess, nil
}

// Save persists the full session snapshot after verifying lock ownership.
func (s *Service) Save(ctx context.Context, sess *Session) error {
	if sess.Finalized {
		return ErrSessionFinalized
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// RecordToolUsage increments the session's tool counter and the matching
// activity bucket, plus the active task's counter when one exists. Called
// once per external tool invocation by instrumentation outside the engine.
func (s *Service) RecordToolUsage(ctx context.Context, sess *Session, toolName string) error {
	if toolName == "" {
		return ErrInvalidInput
	}
	if sess.Finalized {
		return ErrSessionFinalized
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return err
	}

	sess.ToolUsage[toolName]++
	sess.ActivityBreakdown[Categorize(toolName)]++
	if task := sess.ActiveTask(); task != nil {
		if task.ToolUsage == nil {
			task.ToolUsage = map[string]int{}
		}
		task.ToolUsage[toolName]++
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Finalize ends the session and freezes it into an immutable record: any open
// pause is closed, totals are computed, and the workspace's live slot is
// cleared for the next session.
func (s *Service) Finalize(ctx context.Context, sess *Session) error {
	if sess.Finalized {
		return ErrSessionFinalized
	}
	if err := s.guardWrite(ctx, sess); err != nil {
		return err
	}

	s.seal(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}

	s.logActivity(ctx, sess, nil, activity.TypeSessionFinalized,
		fmt.Sprintf("session finalized: %d minutes total, %d active", sess.Timing.TotalMinutes, sess.Timing.ActiveMinutes))
	return nil
}

// FinalizeOrphaned closes a live session whose lease has been superseded:
// the workspace lock no longer names it, so its holder can never legally
// finalize it. The ordinary ownership guard is deliberately skipped. Returns
// the closed session, or nil when the live slot is empty or still owned.
func (s *Service) FinalizeOrphaned(ctx context.Context, workspaceID string) (*Session, error) {
	sess, err := s.sessions.GetLive(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading live session: %w", err)
	}

	status, err := s.locks.Check(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("checking lock ownership: %w", err)
	}
	if status.Lock != nil && status.Lock.SessionID == sess.ID {
		return nil, nil
	}

	s.seal(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("finalizing orphaned session: %w", err)
	}

	s.logActivity(ctx, sess, nil, activity.TypeSessionFinalized,
		fmt.Sprintf("orphaned session finalized after takeover from %s", sess.HolderID))
	return sess, nil
}

// History lists finalized session summaries for reporting collaborators.
func (s *Service) History(ctx context.Context, workspaceID string, limit int) ([]Summary, error) {
	return s.sessions.ListFinalized(ctx, workspaceID, limit)
}

// seal stamps the end time and computes final duration accounting. Active
// minutes are derived as total minus pause so the two figures can never
// drift apart, and are clamped so active never exceeds total.
func (s *Service) seal(sess *Session) {
	now := s.now()
	s.closeOpenPause(sess, now)
	sess.EndedAt = &now
	sess.Timing.TotalMinutes = clock.MinutesBetween(sess.StartedAt, now)
	active := sess.Timing.TotalMinutes - sess.Timing.PauseMinutes
	if active < 0 {
		active = 0
	}
	sess.Timing.ActiveMinutes = active
	sess.ActiveTaskID = nil
	sess.Finalized = true
}

// guardWrite verifies the workspace lock still names this session. The check
// compares session IDs only: a lock that lapsed but was not reclaimed still
// belongs to its session until someone takes it over.
func (s *Service) guardWrite(ctx context.Context, sess *Session) error {
	status, err := s.locks.Check(ctx, sess.WorkspaceID)
	if err != nil {
		return fmt.Errorf("checking lock ownership: %w", err)
	}
	if status.Lock == nil {
		return &StaleWriteError{SessionID: sess.ID}
	}
	if status.Lock.SessionID != sess.ID {
		return &StaleWriteError{
			SessionID:     sess.ID,
			LockSessionID: status.Lock.SessionID,
			LockHolderID:  status.Lock.HolderID,
		}
	}
	return nil
}

// closeOpenPause ends the trailing open pause interval and accumulates its
// length into pause_minutes.
func (s *Service) closeOpenPause(sess *Session, now time.Time) {
	pause := sess.OpenPause()
	if pause == nil {
		return
	}
	end := now
	pause.End = &end
	sess.Timing.PauseMinutes += clock.Minutes(pause.Elapsed(now))
}

// logActivity appends an audit entry. Best-effort: a failed audit write never
// fails the operation it describes.
func (s *Service) logActivity(ctx context.Context, sess *Session, task *Task, activityType activity.Type, summary string) {
	if s.activities == nil {
		return
	}
	entry := &activity.Entry{
		WorkspaceID:  sess.WorkspaceID,
		SessionID:    &sess.ID,
		ActivityType: activityType,
		Summary:      summary,
		CreatedAt:    s.now(),
	}
	if task != nil {
		entry.TaskID = &task.ID
	}
	if err := s.activities.Log(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("activity log write failed", "type", activityType, "error", err)
	}
}
