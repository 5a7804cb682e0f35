package sprints

import (
	"context"
	"time"
)

// DefaultRefreshInterval is how often the worker reloads the cache.
const DefaultRefreshInterval = 15 * time.Minute

// StartRefreshWorker refreshes the cache on a ticker until ctx is cancelled.
// The initial load is left to the caller.
func StartRefreshWorker(ctx context.Context, c *Cache, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		c.logger.Info("Sprint refresh worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				// Errors are logged by Refresh; the old snapshot keeps serving.
				_ = c.Refresh(ctx)
			case <-ctx.Done():
				c.logger.Info("Sprint refresh worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
