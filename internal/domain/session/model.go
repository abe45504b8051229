package session

import (
	"time"

	"github.com/baton-dev/baton/internal/clock"
)

// TaskStatus represents the lifecycle status of a task.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskAbandoned TaskStatus = "abandoned"
)

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskAbandoned
}

// Task is a discrete, independently lifecycled unit of tracked work within a
// session. Its ID is stable across all status transitions.
type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     TaskStatus `json:"status"`
	Iterations int        `json:"iterations"`
	// DurationMinutes is raw wall time from task start to task end, including
	// any time the task spent paused. The pause-adjusted figure lives at the
	// session level (Timing.ActiveMinutes); the two are never conflated.
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	ToolUsage       map[string]int `json:"tool_usage"`
}

// Pause is one interval during which the session's in-flight task was paused.
type Pause struct {
	clock.Interval
	Reason string `json:"reason,omitempty"`
}

// Timing aggregates a session's duration accounting.
type Timing struct {
	TotalMinutes  int     `json:"total_minutes"`
	ActiveMinutes int     `json:"active_minutes"`
	PauseMinutes  int     `json:"pause_minutes"`
	Pauses        []Pause `json:"pauses"`
}

// Session is one continuous span of work by a single holder, composed of
// tasks. While its lock is valid it is exclusively owned by the holder; once
// finalized it is an immutable historical record.
type Session struct {
	ID                string         `json:"id"`
	WorkspaceID       string         `json:"workspace_id"`
	HolderID          string         `json:"holder_id"`
	StartedAt         time.Time      `json:"started_at"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
	Timing            Timing         `json:"timing"`
	ActivityBreakdown map[string]int `json:"activity_breakdown"`
	ToolUsage         map[string]int `json:"tool_usage"`
	Tasks             []Task         `json:"tasks"`
	ActiveTaskID      *string        `json:"active_task_id,omitempty"`
	Finalized         bool           `json:"finalized"`
}

// Summary is a lightweight representation of a finalized session for
// reporting collaborators.
type Summary struct {
	SessionID     string     `json:"session_id"`
	HolderID      string     `json:"holder_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	TotalMinutes  int        `json:"total_minutes"`
	ActiveMinutes int        `json:"active_minutes"`
	TaskCount     int        `json:"task_count"`
}

// ActiveTask returns the currently active task, or nil.
func (s *Session) ActiveTask() *Task {
	for i := range s.Tasks {
		if s.Tasks[i].Status == TaskActive {
			return &s.Tasks[i]
		}
	}
	return nil
}

// LastPausedTask returns the most recently started task still in paused
// state, or nil.
func (s *Session) LastPausedTask() *Task {
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		if s.Tasks[i].Status == TaskPaused {
			return &s.Tasks[i]
		}
	}
	return nil
}

// OpenPause returns the current open pause interval, or nil.
func (s *Session) OpenPause() *Pause {
	if n := len(s.Timing.Pauses); n > 0 && !s.Timing.Pauses[n-1].Closed() {
		return &s.Timing.Pauses[n-1]
	}
	return nil
}

// Task returns the task with the given ID, or nil.
func (s *Session) Task(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}
