// Package mocks provides testify mocks for the domain repository interfaces.
package mocks

import (
	"context"

	"github.com/baton-dev/baton/internal/domain/activity"
	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/domain/session"
	"github.com/baton-dev/baton/internal/domain/workspace"
	"github.com/stretchr/testify/mock"
)

// WorkspaceRepository is a mock for workspace.Repository.
type WorkspaceRepository struct {
	mock.Mock
}

func (m *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}

func (m *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	args := m.Called(ctx, id)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) GetDefault(ctx context.Context) (*workspace.Workspace, error) {
	args := m.Called(ctx)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) List(ctx context.Context) ([]workspace.Summary, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]workspace.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// LockRepository is a mock for lock.Repository.
type LockRepository struct {
	mock.Mock
}

func (m *LockRepository) TryAcquire(ctx context.Context, candidate *lock.Lock, force bool) (*lock.Lock, bool, error) {
	args := m.Called(ctx, candidate, force)
	var current *lock.Lock
	if l, ok := args.Get(0).(*lock.Lock); ok {
		current = l
	}
	return current, args.Bool(1), args.Error(2)
}

func (m *LockRepository) Get(ctx context.Context, workspaceID string) (*lock.Lock, error) {
	args := m.Called(ctx, workspaceID)
	if l, ok := args.Get(0).(*lock.Lock); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LockRepository) Delete(ctx context.Context, workspaceID, holderID string) (bool, error) {
	args := m.Called(ctx, workspaceID, holderID)
	return args.Bool(0), args.Error(1)
}

// SessionRepository is a mock for session.Repository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(ctx, id)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) GetLive(ctx context.Context, workspaceID string) (*session.Session, error) {
	args := m.Called(ctx, workspaceID)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) ListFinalized(ctx context.Context, workspaceID string, limit int) ([]session.Summary, error) {
	args := m.Called(ctx, workspaceID, limit)
	if list, ok := args.Get(0).([]session.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// LockChecker is a mock for session.LockChecker.
type LockChecker struct {
	mock.Mock
}

func (m *LockChecker) Check(ctx context.Context, workspaceID string) (*lock.Status, error) {
	args := m.Called(ctx, workspaceID)
	if status, ok := args.Get(0).(*lock.Status); ok {
		return status, args.Error(1)
	}
	return nil, args.Error(1)
}
