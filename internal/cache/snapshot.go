package cache

import (
	"context"
	"time"

	"zenith/internal/core"
	"zenith/internal/log"
)

// DefaultSnapshotTTL bounds how stale a served snapshot can be when a
// mutation was not followed by Invalidate.
const DefaultSnapshotTTL = 30 * time.Second

// SnapshotBuilder recomputes the analytics snapshot.
type SnapshotBuilder interface {
	Snapshot(ctx context.Context) (*core.Snapshot, error)
}

// SnapshotCache memoizes the combined analytics snapshot. Within the TTL
// and without invalidation, Get returns the same *core.Snapshot pointer.
type SnapshotCache struct {
	*Entry[*core.Snapshot]
	logger *log.Logger
}

func NewSnapshotCache(builder SnapshotBuilder, ttl time.Duration, logger *log.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	logger = logger.WithComponent(log.ComponentCache)
	return &SnapshotCache{
		Entry: NewEntry[*core.Snapshot](ttl, func(ctx context.Context) (*core.Snapshot, error) {
			logger.DebugContext(ctx, "Rebuilding snapshot", log.FieldOperation, log.OpSnapshot)
			return builder.Snapshot(ctx)
		}),
		logger: logger,
	}
}

// Invalidate forces the next Get to recompute.
func (c *SnapshotCache) Invalidate() {
	c.Entry.Invalidate()
	c.logger.Debug("Snapshot invalidated", log.FieldOperation, log.OpInvalidate)
}
