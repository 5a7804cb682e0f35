// Package sprints keeps an in-memory, periodically refreshed snapshot of the
// most relevant sprints and their work items.
package sprints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
)

// Fallback bucket identity used when the project has no usable team iterations.
const (
	FallbackSprintName = "All Work Items"
	FallbackSprintID   = "all"
	FallbackPath       = "/"
)

const (
	defaultMaxBuckets    = 5
	defaultFallbackItems = 200
)

// Source is the subset of the Boards backend the cache loads from.
type Source interface {
	ListTeams(ctx context.Context) ([]boards.Team, error)
	FetchIterations(ctx context.Context, teamID string) ([]domain.Iteration, error)
	FetchIterationItems(ctx context.Context, teamID, iterationID string) ([]domain.WorkItemSummary, error)
	FetchRecentItems(ctx context.Context, limit int) ([]domain.WorkItemSummary, error)
}

// Options tunes a Cache.
type Options struct {
	MaxBuckets    int
	FallbackItems int
	// Now overrides the clock, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// Cache holds the latest successfully built snapshot. Readers never block on a refresh.
type Cache struct {
	source        Source
	maxBuckets    int
	fallbackItems int
	now           func() time.Time
	logger        *slog.Logger

	snap      atomic.Pointer[domain.Snapshot]
	refreshMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []func(*domain.Snapshot)
}

// New creates an empty cache. Call Refresh to populate it.
func New(source Source, opts Options) *Cache {
	c := &Cache{
		source:        source,
		maxBuckets:    opts.MaxBuckets,
		fallbackItems: opts.FallbackItems,
		now:           opts.Now,
		logger:        opts.Logger,
	}
	if c.maxBuckets <= 0 {
		c.maxBuckets = defaultMaxBuckets
	}
	if c.fallbackItems <= 0 {
		c.fallbackItems = defaultFallbackItems
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// OnRefresh registers fn to run after every successful publish.
func (c *Cache) OnRefresh(fn func(*domain.Snapshot)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Refresh rebuilds the snapshot from the backend. On failure the previous
// snapshot stays in place and the error is returned. When no snapshot exists
// yet, a failed load falls back to the recent-items bucket.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.now()
	snap, err := c.build(ctx)
	if err != nil && !c.Populated() {
		c.logger.Warn("Initial sprint load failed, loading recent work items instead", "error", err)
		fallback, fbErr := c.buildFallback(ctx)
		if fbErr != nil {
			c.logger.Error("Sprint cache fallback load failed", "error", fbErr)
			return fmt.Errorf("refresh sprint cache: %w", errors.Join(err, fbErr))
		}
		snap, err = fallback, nil
	}
	if err != nil {
		c.logger.Error("Sprint cache refresh failed, keeping previous snapshot",
			"error", err,
			"populated", c.Populated())
		return fmt.Errorf("refresh sprint cache: %w", err)
	}

	c.Publish(snap)
	c.logger.Info("Sprint cache refreshed",
		"buckets", len(snap.Buckets),
		"items", snap.ItemCount(),
		"duration", c.now().Sub(start))
	return nil
}

func (c *Cache) build(ctx context.Context) (*domain.Snapshot, error) {
	teams, err := c.source.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		c.logger.Warn("No teams found, loading recent work items instead")
		return c.buildFallback(ctx)
	}

	team := teams[0]
	iterations, err := c.source.FetchIterations(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	ordered := OrderIterations(iterations, c.now())
	if len(ordered) == 0 {
		c.logger.Warn("No dated iterations found, loading recent work items instead", "team", team.Name)
		return c.buildFallback(ctx)
	}
	if len(ordered) > c.maxBuckets {
		ordered = ordered[:c.maxBuckets]
	}

	buckets := make([]domain.SprintBucket, 0, len(ordered))
	for _, it := range ordered {
		items, err := c.source.FetchIterationItems(ctx, team.ID, it.ID)
		if err != nil {
			return nil, fmt.Errorf("sprint %q: %w", it.Name, err)
		}
		buckets = append(buckets, domain.SprintBucket{
			SprintName: it.Name,
			SprintID:   it.ID,
			Path:       it.Path,
			Items:      items,
		})
	}
	return &domain.Snapshot{Buckets: buckets, LastUpdated: c.now()}, nil
}

func (c *Cache) buildFallback(ctx context.Context) (*domain.Snapshot, error) {
	items, err := c.source.FetchRecentItems(ctx, c.fallbackItems)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		Buckets: []domain.SprintBucket{{
			SprintName: FallbackSprintName,
			SprintID:   FallbackSprintID,
			Path:       FallbackPath,
			Items:      items,
		}},
		LastUpdated: c.now(),
	}, nil
}

// Publish atomically replaces the current snapshot and runs the refresh hooks.
func (c *Cache) Publish(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	c.snap.Store(snap)

	c.hooksMu.RLock()
	hooks := append([]func(*domain.Snapshot){}, c.hooks...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}
}

// Snapshot returns the current snapshot, or nil before the first successful refresh.
func (c *Cache) Snapshot() *domain.Snapshot {
	return c.snap.Load()
}

// Populated reports whether any snapshot has been published.
func (c *Cache) Populated() bool {
	return c.snap.Load() != nil
}

// Buckets returns the cached buckets, current sprint first.
func (c *Cache) Buckets() []domain.SprintBucket {
	if s := c.snap.Load(); s != nil {
		return s.Buckets
	}
	return nil
}

// Current returns the current sprint bucket. ok is false when nothing is loaded yet.
func (c *Cache) Current() (domain.SprintBucket, bool) {
	return c.snap.Load().Current()
}
