package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/baton-dev/baton/internal/domain/lock"
	"github.com/baton-dev/baton/internal/repository"
	"github.com/stretchr/testify/require"
)

func candidateLock(workspaceID, holderID, sessionID string, now time.Time, lease time.Duration) *lock.Lock {
	return &lock.Lock{
		WorkspaceID: workspaceID,
		HolderID:    holderID,
		SessionID:   sessionID,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(lease),
	}
}

func TestLockTryAcquire_EmptySlot(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	now := time.Now()
	got, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", now, time.Minute), false)
	require.NoError(t, err)
	require.True(t, acquired)
	require.Equal(t, "agent-a", got.HolderID)

	stored, err := repo.Get(ctx, "ws1")
	require.NoError(t, err)
	require.Equal(t, "agent-a", stored.HolderID)
	require.Equal(t, "s1", stored.SessionID)
	require.Equal(t, now.UnixMilli(), stored.AcquiredAt.UnixMilli())
}

func TestLockTryAcquire_HeldByOther(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	now := time.Now()
	_, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", now, time.Hour), false)
	require.NoError(t, err)
	require.True(t, acquired)

	current, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-b", "s2", now, time.Hour), false)
	require.NoError(t, err)
	require.False(t, acquired)
	require.Equal(t, "agent-a", current.HolderID)
	require.Equal(t, "s1", current.SessionID)
}

func TestLockTryAcquire_SameHolderRefresh(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	now := time.Now()
	_, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", now, time.Minute), false)
	require.NoError(t, err)
	require.True(t, acquired)

	later := now.Add(30 * time.Second)
	refreshed, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", later, time.Minute), false)
	require.NoError(t, err)
	require.True(t, acquired)
	require.Equal(t, later.Add(time.Minute).UnixMilli(), refreshed.ExpiresAt.UnixMilli())

	stored, err := repo.Get(ctx, "ws1")
	require.NoError(t, err)
	require.Equal(t, later.Add(time.Minute).UnixMilli(), stored.ExpiresAt.UnixMilli())
}

func TestLockTryAcquire_StaleReclaim(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	// agent-a's lease expired a minute ago.
	past := time.Now().Add(-10 * time.Minute)
	_, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", past, 9*time.Minute), false)
	require.NoError(t, err)
	require.True(t, acquired)

	got, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-b", "s2", time.Now(), time.Hour), false)
	require.NoError(t, err)
	require.True(t, acquired)
	require.Equal(t, "agent-b", got.HolderID)
}

func TestLockTryAcquire_Force(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	now := time.Now()
	_, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", now, time.Hour), false)
	require.NoError(t, err)
	require.True(t, acquired)

	got, acquired, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-b", "s2", now, time.Hour), true)
	require.NoError(t, err)
	require.True(t, acquired)
	require.Equal(t, "agent-b", got.HolderID)

	stored, err := repo.Get(ctx, "ws1")
	require.NoError(t, err)
	require.Equal(t, "agent-b", stored.HolderID)
}

func TestLockDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	_, _, err := repo.TryAcquire(ctx, candidateLock("ws1", "agent-a", "s1", time.Now(), time.Hour), false)
	require.NoError(t, err)

	// Wrong holder removes nothing.
	deleted, err := repo.Delete(ctx, "ws1", "agent-b")
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = repo.Delete(ctx, "ws1", "agent-a")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = repo.Get(ctx, "ws1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLockGet_NotFound(t *testing.T) {
	db := NewTestDB(t)
	repo := NewLockRepository(db)

	_, err := repo.Get(context.Background(), "ws1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// TestLockTryAcquire_SingleWinner races concurrent acquirers against one slot.
func TestLockTryAcquire_SingleWinner(t *testing.T) {
	db := NewTestFileDB(t)
	ctx := context.Background()
	createTestWorkspace(t, db, "ws1")
	repo := NewLockRepository(db)

	const contenders = 8
	now := time.Now()

	var wg sync.WaitGroup
	wins := make(chan string, contenders)
	for i := 0; i < contenders; i++ {
		holder := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, acquired, err := repo.TryAcquire(ctx,
				candidateLock("ws1", "agent-"+holder, "sess-"+holder, now, time.Hour), false)
			if err == nil && acquired {
				wins <- holder
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1, "exactly one contender must win")

	stored, err := repo.Get(ctx, "ws1")
	require.NoError(t, err)
	require.Equal(t, "agent-"+winners[0], stored.HolderID)
}
