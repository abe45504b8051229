package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baton-dev/baton/internal/clock"
	"github.com/baton-dev/baton/internal/repository"
)

// DefaultLease is the lease duration used when none is configured.
const DefaultLease = 30 * time.Minute

// Manager implements the acquire/release/check protocol over a lock
// Repository. Crash detection is approximated by lease expiry: a crashed
// holder is never probed, its lease simply lapses and the next acquirer
// reclaims the slot. This trades strict liveness for availability.
type Manager struct {
	locks  Repository
	lease  time.Duration
	logger *slog.Logger
	now    clock.NowFunc
}

// NewManager creates a lock manager with the given lease duration.
func NewManager(locks Repository, lease time.Duration, logger *slog.Logger) *Manager {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Manager{
		locks:  locks,
		lease:  lease,
		logger: logger,
		now:    time.Now,
	}
}

// Lease returns the configured lease duration.
func (m *Manager) Lease() time.Duration {
	return m.lease
}

// Acquire attempts to take the workspace lease for holderID. A free or stale
// slot is claimed; re-acquiring as the current holder refreshes the expiry;
// force overwrites any holder unconditionally. A valid lease owned by someone
// else fails with *HeldError. Acquire never waits on another process.
func (m *Manager) Acquire(ctx context.Context, workspaceID, holderID, sessionID string, force bool) (*Lock, error) {
	now := m.now()
	candidate := &Lock{
		WorkspaceID: workspaceID,
		HolderID:    holderID,
		SessionID:   sessionID,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(m.lease),
	}

	current, acquired, err := m.locks.TryAcquire(ctx, candidate, force)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !acquired {
		return nil, &HeldError{
			WorkspaceID: workspaceID,
			HolderID:    current.HolderID,
			SessionID:   current.SessionID,
			ExpiresAt:   current.ExpiresAt,
		}
	}

	if m.logger != nil {
		m.logger.Info("lock acquired",
			"workspace", workspaceID, "holder", holderID, "session", sessionID,
			"forced", force, "expires_at", candidate.ExpiresAt)
	}
	return candidate, nil
}

// Release removes the lock if currently held by holderID. Releasing a lock
// held by someone else, or no lock at all, returns *NotOwnerError without
// mutating shared state.
func (m *Manager) Release(ctx context.Context, workspaceID, holderID string) error {
	deleted, err := m.locks.Delete(ctx, workspaceID, holderID)
	if err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	if deleted {
		if m.logger != nil {
			m.logger.Info("lock released", "workspace", workspaceID, "holder", holderID)
		}
		return nil
	}

	current, err := m.locks.Get(ctx, workspaceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("loading lock after failed release: %w", err)
	}
	return &NotOwnerError{WorkspaceID: workspaceID, HolderID: holderID, Current: current}
}

// Check returns the current lock and a computed staleness flag. It is purely
// informational and never decides ownership transitions.
func (m *Manager) Check(ctx context.Context, workspaceID string) (*Status, error) {
	current, err := m.locks.Get(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Status{}, nil
		}
		return nil, fmt.Errorf("checking lock: %w", err)
	}
	return &Status{Lock: current, IsStale: current.Expired(m.now())}, nil
}
