package session

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/riot-front/internal/log"
)

// Cleaner removes expired sessions and reports how many it removed
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupManager sweeps a Cleaner on a fixed interval until stopped
type CleanupManager struct {
	cleaner  Cleaner
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(cleaner Cleaner, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		interval: interval,
	}
}

// Start begins sweeping in a goroutine. The loop ends when ctx is
// cancelled or Stop is called. Starting a running manager is a no-op.
func (cm *CleanupManager) Start(ctx context.Context) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel != nil {
		return
	}

	ctx, cm.cancel = context.WithCancel(ctx)
	cm.done = make(chan struct{})

	log.LogInfoWithFields("cleanup", "Starting session cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})
	go cm.run(ctx, cm.done)
}

// Stop ends the loop and waits for an in-flight sweep to finish
func (cm *CleanupManager) Stop() {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel, cm.done = nil, nil
	cm.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.LogInfo("Session cleanup manager stopped")
}

func (cm *CleanupManager) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.sweep(ctx)
		}
	}
}

func (cm *CleanupManager) sweep(ctx context.Context) {
	count, err := cm.cleaner.CleanupExpired(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		// stopping
	case err != nil:
		log.LogErrorWithFields("cleanup", "Failed to clean up expired sessions", map[string]any{
			"error": err.Error(),
		})
	case count > 0:
		log.LogInfoWithFields("cleanup", "Cleaned up expired sessions", map[string]any{
			"count": count,
		})
	}
}
