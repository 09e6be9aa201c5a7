package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/catalogs/material"
)

const strategyKeyPrefix = "lotkeeper:strategy:"

// StrategyCache keeps resolved lot strategies in Redis, keyed by material
// and warehouse.
type StrategyCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewStrategyCache creates a Redis-backed strategy cache.
func NewStrategyCache(rdb redis.UniversalClient, ttl time.Duration) *StrategyCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StrategyCache{rdb: rdb, ttl: ttl}
}

var _ material.StrategyCache = (*StrategyCache)(nil)

func strategyKey(materialID, warehouseID id.ID) string {
	return strategyKeyPrefix + materialID.String() + ":" + warehouseID.String()
}

// Get returns the cached strategy and whether it was present.
func (c *StrategyCache) Get(ctx context.Context, materialID, warehouseID id.ID) (allocation.Strategy, bool, error) {
	v, err := c.rdb.Get(ctx, strategyKey(materialID, warehouseID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get strategy: %w", err)
	}

	s := allocation.Strategy(v)
	if !s.IsValid() {
		// Entries written by an incompatible version are ignored.
		return "", false, nil
	}
	return s, true, nil
}

// Set stores strategy for ttl.
func (c *StrategyCache) Set(ctx context.Context, materialID, warehouseID id.ID, strategy allocation.Strategy) error {
	if err := c.rdb.Set(ctx, strategyKey(materialID, warehouseID), string(strategy), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set strategy: %w", err)
	}
	return nil
}

// InvalidateMaterial drops the entries of a material at every warehouse.
func (c *StrategyCache) InvalidateMaterial(ctx context.Context, materialID id.ID) error {
	pattern := strategyKeyPrefix + materialID.String() + ":*"

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan strategies: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete strategies: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity for readiness probes.
func (c *StrategyCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
