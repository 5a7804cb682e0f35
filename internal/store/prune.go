package store

import (
	"context"
	"log/slog"
	"time"
)

// PruneInterval is how often old transcripts are deleted.
const PruneInterval = 24 * time.Hour

// StartPruneWorker runs a background goroutine that deletes turns older than retention.
// It prunes once at start and then every interval until ctx is done.
func StartPruneWorker(ctx context.Context, repo Repository, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Transcript prune worker started", "interval", interval, "retention", retention)

		prune(ctx, repo, retention)
		for {
			select {
			case <-ticker.C:
				prune(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Transcript prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func prune(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.PruneBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("Transcript prune failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Pruned old transcript turns", "count", deleted)
	}
}
