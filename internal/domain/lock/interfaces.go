package lock

import "context"

// Repository provides persistence for locks. TryAcquire is the atomicity
// contract: the read of the existing lock and the write of the candidate must
// happen as one storage operation, so two racing acquirers can never both
// observe success.
type Repository interface {
	// TryAcquire installs candidate if the slot is free, stale, already owned
	// by the same holder, or force is set. It returns the lock now in the
	// slot and whether the candidate was installed.
	TryAcquire(ctx context.Context, candidate *Lock, force bool) (*Lock, bool, error)

	// Get returns the current lock row, expired or not.
	// Returns repository.ErrNotFound when no lock exists.
	Get(ctx context.Context, workspaceID string) (*Lock, error)

	// Delete removes the lock only if held by holderID, reporting whether a
	// row was removed.
	Delete(ctx context.Context, workspaceID, holderID string) (bool, error)
}
