package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	snapshotPrefix = "auction:snapshot:"
	snapshotTTL    = 10 * time.Second
)

// SnapshotCache keeps the most recent serialized auction view so a burst
// of reconnecting clients does not hammer the state store. Entries expire
// quickly; the store remains the source of truth.
type SnapshotCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSnapshotCache creates a redis-backed snapshot cache.
func NewSnapshotCache(client *redis.Client, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{client: client, logger: logger}
}

// Put stores the serialized snapshot.
func (c *SnapshotCache) Put(ctx context.Context, auctionID uuid.UUID, snapshot interface{}) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Warn("snapshot marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, snapshotPrefix+auctionID.String(), data, snapshotTTL).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed",
			zap.String("auction_id", auctionID.String()),
			zap.Error(err))
	}
}

// Get returns the cached serialized snapshot, or nil on miss.
func (c *SnapshotCache) Get(ctx context.Context, auctionID uuid.UUID) []byte {
	data, err := c.client.Get(ctx, snapshotPrefix+auctionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		c.logger.Warn("snapshot cache read failed",
			zap.String("auction_id", auctionID.String()),
			zap.Error(err))
		return nil
	}
	return data
}

// Invalidate drops the cached snapshot after a mutation.
func (c *SnapshotCache) Invalidate(ctx context.Context, auctionID uuid.UUID) {
	if err := c.client.Del(ctx, snapshotPrefix+auctionID.String()).Err(); err != nil {
		c.logger.Warn("snapshot cache invalidation failed",
			zap.String("auction_id", auctionID.String()),
			zap.Error(err))
	}
}
