package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/praxislabs/readiness/internal/store"
)

const cleanupInterval = 1 * time.Hour

// StartCleanupWorker periodically prunes abandoned in-progress
// sessions from the store. Completed sessions are never pruned; they
// back the resume and retake surfaces indefinitely.
func StartCleanupWorker(ctx context.Context, repo store.Repository, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := repo.CleanupStaleSessions(ctx, ttl)
				if err != nil {
					slog.Warn("Stale session cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("Pruned stale assessment sessions", "deleted", deleted, "ttl", ttl)
				}
			}
		}
	}()
}
