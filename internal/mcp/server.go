// Package mcp exposes the coordination engine's public operations as MCP
// tools. It is a thin collaborator: argument decoding and error shaping live
// here, all semantics live in the domain services.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/domain/workspace"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `baton coordinates independent agents sharing a workspace.
Acquire the workspace lease before mutating anything; renew it with renew_lease
(or let it lapse to hand the workspace off), and finalize your session with
end_session when done. A stale lock is reclaimable with a plain acquire; a held
one only with force=true.`

// WorkspaceService defines workspace operations needed by MCP.
type WorkspaceService interface {
	Create(ctx context.Context, req workspace.CreateRequest) (*workspace.Workspace, error)
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
	GetDefault(ctx context.Context) (*workspace.Workspace, error)
	List(ctx context.Context) ([]workspace.Summary, error)
}

// LockService defines lock operations needed by MCP.
type LockService interface {
	Acquire(ctx context.Context, workspaceID, holderID, sessionID string, force bool) (*lock.Lock, error)
	Release(ctx context.Context, workspaceID, holderID string) error
	Check(ctx context.Context, workspaceID string) (*lock.Status, error)
	Lease() time.Duration
}

// SessionService defines session and task operations needed by MCP.
type SessionService interface {
	Start(ctx context.Context, workspaceID, holderID, sessionID string) (*session.Session, error)
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Live(ctx context.Context, workspaceID string) (*session.Session, error)
	Finalize(ctx context.Context, sess *session.Session) error
	FinalizeOrphaned(ctx context.Context, workspaceID string) (*session.Session, error)
	RecordToolUsage(ctx context.Context, sess *session.Session, toolName string) error
	History(ctx context.Context, workspaceID string, limit int) ([]session.Summary, error)
	StartTask(ctx context.Context, sess *session.Session, title string) (*session.Task, error)
	PauseTask(ctx context.Context, sess *session.Session, reason string) (*session.Task, error)
	ResumeTask(ctx context.Context, sess *session.Session) (*session.Task, error)
	IterateTask(ctx context.Context, sess *session.Session) (*session.Task, error)
	CompleteTask(ctx context.Context, sess *session.Session) (*session.Task, error)
	AbandonTask(ctx context.Context, sess *session.Session, reason string) (*session.Task, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	Log(ctx context.Context, entry *activity.Entry) error
	Recent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Workspaces WorkspaceService
	Locks      LockService
	Sessions   SessionService
	Activity   ActivityService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "baton",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
