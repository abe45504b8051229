package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/domain/workspace"
	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type CreateWorkspaceParams struct {
	ID       string `json:"id,omitempty" jsonschema:"Unique workspace identifier (generated if omitted)"`
	Name     string `json:"name" jsonschema:"Workspace display name"`
	RootPath string `json:"root_path,omitempty" jsonschema:"Filesystem root the workspace coordinates"`
}

type ListWorkspacesParams struct{}

type ListWorkspacesResult struct {
	Workspaces []workspace.Summary `json:"workspaces"`
}

type AcquireParams struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Workspace ID (omit to use default workspace)"`
	HolderID    string `json:"holder_id" jsonschema:"Identity of the acquiring agent"`
	Force       bool   `json:"force,omitempty" jsonschema:"Overwrite a valid lease held by someone else"`
}

type AcquireResult struct {
	SessionID      string     `json:"session_id"`
	Lock           *lock.Lock `json:"lock"`
	TookOverFrom   string     `json:"took_over_from,omitempty"`
	ClosedOrphanID string     `json:"closed_orphan_session,omitempty"`
}

type RenewLeaseParams struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace ID"`
	HolderID    string `json:"holder_id" jsonschema:"Identity of the renewing agent"`
	SessionID   string `json:"session_id" jsonschema:"Session the lease was granted to"`
}

type RenewLeaseResult struct {
	Lock *lock.Lock `json:"lock"`
}

type ReleaseParams struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace ID"`
	HolderID    string `json:"holder_id" jsonschema:"Identity of the releasing agent"`
}

type ReleaseResult struct {
	Released bool `json:"released"`
}

type EndSessionParams struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace ID"`
	HolderID    string `json:"holder_id" jsonschema:"Identity of the agent ending its session"`
}

type EndSessionResult struct {
	Session *session.Session `json:"session"`
}

type StatusParams struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Workspace ID (omit to use default workspace)"`
}

// StatusResult is purely informational. A stale lock and an absent live
// session are normal, displayable states.
type StatusResult struct {
	WorkspaceID   string          `json:"workspace_id"`
	Lock          *lock.Lock      `json:"lock,omitempty"`
	IsStale       bool            `json:"is_stale"`
	LeaseMinutes  int             `json:"lease_minutes"`
	LiveSessionID string          `json:"live_session_id,omitempty"`
	ActiveTask    *session.Task   `json:"active_task,omitempty"`
	Timing        *session.Timing `json:"timing,omitempty"`
}

type TaskParams struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace ID"`
	Title       string `json:"title,omitempty" jsonschema:"Task title (start_task only)"`
	Reason      string `json:"reason,omitempty" jsonschema:"Optional reason (pause_task and abandon_task)"`
}

type TaskResult struct {
	Task *session.Task `json:"task"`
}

type RecordToolUsageParams struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace ID"`
	ToolName    string `json:"tool_name" jsonschema:"Name of the tool that was invoked"`
}

type RecordToolUsageResult struct {
	ToolUsage         map[string]int `json:"tool_usage"`
	ActivityBreakdown map[string]int `json:"activity_breakdown"`
}

type GetSessionParams struct {
	SessionID string `json:"session_id" jsonschema:"Session ID"`
}

type HistoryParams struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Workspace ID (omit to use default workspace)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of sessions"`
}

type HistoryResult struct {
	Sessions []session.Summary `json:"sessions"`
}

type RecentActivityParams struct {
	WorkspaceID string `json:"workspace_id,omitempty" jsonschema:"Workspace ID (omit to use default workspace)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of entries"`
}

type RecentActivityResult struct {
	Entries []activity.Entry `json:"entries"`
}

// registerTools wires every engine operation as a typed MCP tool.
func registerTools(server *sdkmcp.Server, svc Services) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_workspace",
		Description: "Create a workspace: a coordination scope with one lock and one live session",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in CreateWorkspaceParams) (*sdkmcp.CallToolResult, *workspace.Workspace, error) {
		ws, err := svc.Workspaces.Create(ctx, workspace.CreateRequest{ID: in.ID, Name: in.Name, RootPath: in.RootPath})
		if err != nil {
			return nil, nil, mapError(err)
		}
		return nil, ws, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_workspaces",
		Description: "List all workspaces with session counts",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in ListWorkspacesParams) (*sdkmcp.CallToolResult, ListWorkspacesResult, error) {
		list, err := svc.Workspaces.List(ctx)
		if err != nil {
			return nil, ListWorkspacesResult{}, mapError(err)
		}
		return nil, ListWorkspacesResult{Workspaces: list}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "acquire_workspace",
		Description: "Take the workspace lease and open a session. Fails if a valid lease is held by someone else, unless force is set",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in AcquireParams) (*sdkmcp.CallToolResult, AcquireResult, error) {
		res, err := acquireWorkspace(ctx, svc, in)
		if err != nil {
			return nil, AcquireResult{}, mapError(err)
		}
		return nil, res, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "renew_lease",
		Description: "Refresh the lease expiry for a session already holding the workspace",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in RenewLeaseParams) (*sdkmcp.CallToolResult, RenewLeaseResult, error) {
		l, err := svc.Locks.Acquire(ctx, in.WorkspaceID, in.HolderID, in.SessionID, false)
		if err != nil {
			return nil, RenewLeaseResult{}, mapError(err)
		}
		return nil, RenewLeaseResult{Lock: l}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "release_workspace",
		Description: "Release the workspace lease without finalizing the session (hand-off)",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in ReleaseParams) (*sdkmcp.CallToolResult, ReleaseResult, error) {
		if err := svc.Locks.Release(ctx, in.WorkspaceID, in.HolderID); err != nil {
			return nil, ReleaseResult{}, mapError(err)
		}
		logEngineEvent(ctx, svc, in.WorkspaceID, nil, activity.TypeLockReleased,
			fmt.Sprintf("lock released by %s", in.HolderID))
		return nil, ReleaseResult{Released: true}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "end_session",
		Description: "Finalize the live session into an immutable record and release the lease",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in EndSessionParams) (*sdkmcp.CallToolResult, EndSessionResult, error) {
		sess, err := svc.Sessions.Live(ctx, in.WorkspaceID)
		if err != nil {
			return nil, EndSessionResult{}, mapError(err)
		}
		if err := svc.Sessions.Finalize(ctx, sess); err != nil {
			return nil, EndSessionResult{}, mapError(err)
		}
		if err := svc.Locks.Release(ctx, in.WorkspaceID, in.HolderID); err != nil {
			return nil, EndSessionResult{}, mapError(err)
		}
		logEngineEvent(ctx, svc, in.WorkspaceID, &sess.ID, activity.TypeLockReleased,
			fmt.Sprintf("lock released by %s", in.HolderID))
		return nil, EndSessionResult{Session: sess}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "workspace_status",
		Description: "Read-only status of the workspace lock and live session",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in StatusParams) (*sdkmcp.CallToolResult, StatusResult, error) {
		res, err := workspaceStatus(ctx, svc, in.WorkspaceID)
		if err != nil {
			return nil, StatusResult{}, mapError(err)
		}
		return nil, res, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "start_task",
		Description: "Start a new task in the live session; an already active task is auto-paused",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.StartTask(ctx, sess, in.Title)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "pause_task",
		Description: "Pause the active task and open a pause interval",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.PauseTask(ctx, sess, in.Reason)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "resume_task",
		Description: "Resume the most recently paused task, closing the open pause interval",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.ResumeTask(ctx, sess)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "iterate_task",
		Description: "Mark another attempt at the active task's unit of work",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.IterateTask(ctx, sess)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "complete_task",
		Description: "Complete the active task (terminal)",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.CompleteTask(ctx, sess)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "abandon_task",
		Description: "Abandon the active or most recently paused task (terminal)",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in TaskParams) (*sdkmcp.CallToolResult, TaskResult, error) {
		return taskOp(ctx, svc, in.WorkspaceID, func(sess *session.Session) (*session.Task, error) {
			return svc.Sessions.AbandonTask(ctx, sess, in.Reason)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "record_tool_usage",
		Description: "Increment tool usage counters on the live session and its active task",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in RecordToolUsageParams) (*sdkmcp.CallToolResult, RecordToolUsageResult, error) {
		sess, err := svc.Sessions.Live(ctx, in.WorkspaceID)
		if err != nil {
			return nil, RecordToolUsageResult{}, mapError(err)
		}
		if err := svc.Sessions.RecordToolUsage(ctx, sess, in.ToolName); err != nil {
			return nil, RecordToolUsageResult{}, mapError(err)
		}
		return nil, RecordToolUsageResult{
			ToolUsage:         sess.ToolUsage,
			ActivityBreakdown: sess.ActivityBreakdown,
		}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_session",
		Description: "Load a session snapshot by ID (live or finalized)",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in GetSessionParams) (*sdkmcp.CallToolResult, *session.Session, error) {
		sess, err := svc.Sessions.Get(ctx, in.SessionID)
		if err != nil {
			return nil, nil, mapError(err)
		}
		return nil, sess, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "session_history",
		Description: "List finalized sessions for a workspace, newest first",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in HistoryParams) (*sdkmcp.CallToolResult, HistoryResult, error) {
		ws, err := resolveWorkspace(ctx, svc, in.WorkspaceID)
		if err != nil {
			return nil, HistoryResult{}, mapError(err)
		}
		list, err := svc.Sessions.History(ctx, ws.ID, in.Limit)
		if err != nil {
			return nil, HistoryResult{}, mapError(err)
		}
		return nil, HistoryResult{Sessions: list}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_activity",
		Description: "List recent engine events for a workspace",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in RecentActivityParams) (*sdkmcp.CallToolResult, RecentActivityResult, error) {
		ws, err := resolveWorkspace(ctx, svc, in.WorkspaceID)
		if err != nil {
			return nil, RecentActivityResult{}, mapError(err)
		}
		entries, err := svc.Activity.Recent(ctx, activity.ListOptions{WorkspaceID: ws.ID, Limit: in.Limit})
		if err != nil {
			return nil, RecentActivityResult{}, mapError(err)
		}
		return nil, RecentActivityResult{Entries: entries}, nil
	})
}

func acquireWorkspace(ctx context.Context, svc Services, in AcquireParams) (AcquireResult, error) {
	ws, err := resolveWorkspace(ctx, svc, in.WorkspaceID)
	if err != nil {
		return AcquireResult{}, err
	}

	prev, err := svc.Locks.Check(ctx, ws.ID)
	if err != nil {
		return AcquireResult{}, err
	}

	// Re-acquiring as the current holder is an idempotent refresh: the lease
	// expiry moves forward and the live session stays.
	refresh := prev.Lock != nil && prev.Lock.HolderID == in.HolderID
	sessionID := uuid.NewString()
	if refresh {
		sessionID = prev.Lock.SessionID
	}

	l, err := svc.Locks.Acquire(ctx, ws.ID, in.HolderID, sessionID, in.Force)
	if err != nil {
		return AcquireResult{}, err
	}

	result := AcquireResult{SessionID: sessionID, Lock: l}

	if !refresh {
		eventType := activity.TypeLockAcquired
		summary := fmt.Sprintf("lock acquired by %s", in.HolderID)
		if prev.Lock != nil && !prev.IsStale {
			eventType = activity.TypeLockForced
			summary = fmt.Sprintf("lock forced by %s from %s", in.HolderID, prev.Lock.HolderID)
			result.TookOverFrom = prev.Lock.HolderID
		}
		logEngineEvent(ctx, svc, ws.ID, &sessionID, eventType, summary)
	}

	if refresh {
		if sess, err := svc.Sessions.Live(ctx, ws.ID); err == nil && sess.ID == sessionID {
			return result, nil
		} else if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			return AcquireResult{}, err
		}
	}

	// A superseded holder may have left its session in the live slot.
	if orphan, err := svc.Sessions.FinalizeOrphaned(ctx, ws.ID); err != nil {
		return AcquireResult{}, err
	} else if orphan != nil {
		result.ClosedOrphanID = orphan.ID
	}

	if _, err := svc.Sessions.Start(ctx, ws.ID, in.HolderID, sessionID); err != nil {
		return AcquireResult{}, err
	}
	return result, nil
}

func workspaceStatus(ctx context.Context, svc Services, workspaceID string) (StatusResult, error) {
	ws, err := resolveWorkspace(ctx, svc, workspaceID)
	if err != nil {
		return StatusResult{}, err
	}

	status, err := svc.Locks.Check(ctx, ws.ID)
	if err != nil {
		return StatusResult{}, err
	}

	result := StatusResult{
		WorkspaceID:  ws.ID,
		Lock:         status.Lock,
		IsStale:      status.IsStale,
		LeaseMinutes: int(svc.Locks.Lease() / time.Minute),
	}

	sess, err := svc.Sessions.Live(ctx, ws.ID)
	if err != nil {
		// An empty live slot is a normal, displayable state.
		if errors.Is(err, session.ErrSessionNotFound) {
			return result, nil
		}
		return StatusResult{}, err
	}
	result.LiveSessionID = sess.ID
	result.ActiveTask = sess.ActiveTask()
	result.Timing = &sess.Timing
	return result, nil
}

func taskOp(ctx context.Context, svc Services, workspaceID string, op func(*session.Session) (*session.Task, error)) (*sdkmcp.CallToolResult, TaskResult, error) {
	sess, err := svc.Sessions.Live(ctx, workspaceID)
	if err != nil {
		return nil, TaskResult{}, mapError(err)
	}
	task, err := op(sess)
	if err != nil {
		return nil, TaskResult{}, mapError(err)
	}
	return nil, TaskResult{Task: task}, nil
}

func resolveWorkspace(ctx context.Context, svc Services, id string) (*workspace.Workspace, error) {
	if id == "" {
		return svc.Workspaces.GetDefault(ctx)
	}
	return svc.Workspaces.Get(ctx, id)
}

func logEngineEvent(ctx context.Context, svc Services, workspaceID string, sessionID *string, eventType activity.Type, summary string) {
	if svc.Activity == nil {
		return
	}
	_ = svc.Activity.Log(ctx, &activity.Entry{
		WorkspaceID:  workspaceID,
		SessionID:    sessionID,
		ActivityType: eventType,
		Summary:      summary,
		CreatedAt:    time.Now(),
	})
}
