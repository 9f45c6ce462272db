package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// latestHashKey is the cache key layout for per-scope chain heads.
func latestHashKey(scope string) string { return "sentinel:latest-hash:" + scope }

// CachedStore decorates a SnapshotStore with a Redis cache of per-scope
// latest hashes, the hot read of every ingest cycle. The cache is strictly
// an accelerator: any Redis failure falls through to SQL and is logged at
// debug level, and writes update the cache best effort.
type CachedStore struct {
	SnapshotStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner with a latest-hash cache. A zero ttl means
// entries do not expire.
func NewCachedStore(inner SnapshotStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{SnapshotStore: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedStore) Store(ctx context.Context, snap model.Snapshot) (model.ChainEntry, error) {
	entry, err := c.SnapshotStore.Store(ctx, snap)
	if err != nil {
		return entry, err
	}
	// The stored entry is not necessarily the head: a re-delivered old
	// payload replaces its own row. Cache the authoritative head.
	head, err := c.SnapshotStore.LatestHash(ctx, entry.Scope)
	if err != nil {
		c.logger.Debug("latest-hash read after store failed", "scope", entry.Scope, "error", err)
		return entry, nil
	}
	if err := c.client.Set(ctx, latestHashKey(entry.Scope), head, c.ttl).Err(); err != nil {
		c.logger.Debug("latest-hash cache update failed", "scope", entry.Scope, "error", err)
	}
	return entry, nil
}

func (c *CachedStore) LatestHash(ctx context.Context, scope string) (string, error) {
	hash, err := c.client.Get(ctx, latestHashKey(scope)).Result()
	if err == nil {
		return hash, nil
	}
	if err != redis.Nil {
		c.logger.Debug("latest-hash cache read failed", "scope", scope, "error", err)
	}
	return c.SnapshotStore.LatestHash(ctx, scope)
}
