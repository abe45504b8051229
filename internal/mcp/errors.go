package mcp

import (
	"errors"
	"fmt"

	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/domain/workspace"
	"github.com/baton-dev/baton/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// mapError maps domain errors to MCP error codes. Every error carries enough
// structured detail for the caller to decide whether to wait, retry, or force.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var held *lock.HeldError
	if errors.As(err, &held) {
		return &APIError{
			Code:         "LOCK_HELD",
			Message:      held.Error(),
			Details:      held,
			RecoveryHint: "Wait for the lease to expire or acquire with force=true",
		}
	}
	var notOwner *lock.NotOwnerError
	if errors.As(err, &notOwner) {
		return &APIError{
			Code:         "NOT_LOCK_OWNER",
			Message:      notOwner.Error(),
			Details:      notOwner,
			RecoveryHint: "Only the current holder may release; the lease will lapse on its own",
		}
	}
	var stale *session.StaleWriteError
	if errors.As(err, &stale) {
		return &APIError{
			Code:         "STALE_WRITE",
			Message:      stale.Error(),
			Details:      stale,
			RecoveryHint: "Your lease was superseded; stop mutating and re-acquire",
		}
	}

	var storage *repository.StorageError
	if errors.As(err, &storage) {
		return &APIError{Code: "STORAGE", Message: storage.Error(), RecoveryHint: "Retry the operation"}
	}

	switch {
	case errors.Is(err, session.ErrNoActiveTask):
		return &APIError{Code: "NO_ACTIVE_TASK", Message: "no active task", RecoveryHint: "Start or resume a task first"}
	case errors.Is(err, session.ErrNoPausedTask):
		return &APIError{Code: "NO_PAUSED_TASK", Message: "no paused task", RecoveryHint: "Pause a task before resuming"}
	case errors.Is(err, session.ErrActiveTaskExists):
		return &APIError{Code: "TASK_ALREADY_ACTIVE", Message: "a task is already active", RecoveryHint: "Pause or complete it first"}
	case errors.Is(err, session.ErrSessionNotFound):
		return &APIError{Code: "SESSION_NOT_FOUND", Message: "no live session", RecoveryHint: "Acquire the workspace to start one"}
	case errors.Is(err, session.ErrSessionFinalized):
		return &APIError{Code: "SESSION_FINALIZED", Message: "session is finalized and immutable"}
	case errors.Is(err, workspace.ErrWorkspaceNotFound):
		return &APIError{Code: "WORKSPACE_NOT_FOUND", Message: "workspace not found", RecoveryHint: "Check ID spelling or create it"}
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, workspace.ErrInvalidInput), errors.Is(err, repository.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return err
	}
}
