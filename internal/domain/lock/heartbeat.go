package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Renewer is the slice of Manager the heartbeat needs.
type Renewer interface {
	Acquire(ctx context.Context, workspaceID, holderID, sessionID string, force bool) (*Lock, error)
}

// Heartbeat renews a held lease on a fixed interval while a session is alive.
// A failed renewal means the lease was forced away or the store is gone; the
// heartbeat stops itself and fires the OnLost callback so the owning process
// knows it must not keep mutating session state.
type Heartbeat struct {
	renewer  Renewer
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RenewalInterval derives the default heartbeat interval from a lease
// duration: roughly one third, so a lease survives two missed beats.
func RenewalInterval(lease time.Duration) time.Duration {
	return lease / 3
}

// NewHeartbeat creates a heartbeat that renews through the given renewer.
func NewHeartbeat(renewer Renewer, interval time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		renewer:  renewer,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic renewal for the given holder and session. It is a
// no-op if the heartbeat is already running. OnLost may be nil.
func (h *Heartbeat) Start(workspaceID, holderID, sessionID string, onLost func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done

	go h.run(ctx, done, workspaceID, holderID, sessionID, onLost)
}

// Stop cancels the renewal timer and waits for the loop to exit. Safe to call
// multiple times and after the heartbeat stopped itself.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (h *Heartbeat) run(ctx context.Context, done chan struct{}, workspaceID, holderID, sessionID string, onLost func(error)) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := h.renewer.Acquire(ctx, workspaceID, holderID, sessionID, false)
			if err == nil {
				if h.logger != nil {
					h.logger.Debug("lease renewed", "workspace", workspaceID, "holder", holderID)
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if h.logger != nil {
				h.logger.Warn("lease renewal failed, stopping heartbeat",
					"workspace", workspaceID, "holder", holderID, "error", err)
			}
			h.mu.Lock()
			cancel := h.cancel
			h.cancel = nil
			h.done = nil
			h.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			if onLost != nil {
				onLost(err)
			}
			return
		}
	}
}
