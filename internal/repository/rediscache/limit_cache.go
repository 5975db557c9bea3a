// internal/repository/rediscache/limit_cache.go
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lotto-ledger/internal/domain"
	"lotto-ledger/internal/repository"
)

const keyPrefix = "lotto:payment_limit:"

// Options configures the Redis connection used by the limit cache.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and checks it with a PING.
func Connect(ctx context.Context, opts Options) (redis.UniversalClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  1 * time.Second,
		ReadTimeout:  400 * time.Millisecond,
		WriteTimeout: 400 * time.Millisecond,
		PoolTimeout:  750 * time.Millisecond,
		MaxRetries:   0,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			_ = cn.ClientSetName(ctx, "lotto-ledger").Err()
			return nil
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// LimitCache implements repository.LimitCache on Redis with a fixed TTL.
type LimitCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewLimitCache creates a cache whose entries expire after ttl.
func NewLimitCache(rdb redis.UniversalClient, ttl time.Duration) repository.LimitCache {
	return &LimitCache{rdb: rdb, ttl: ttl}
}

func key(actorID string) string {
	return keyPrefix + actorID
}

// Get returns the cached limit for actorID.
func (c *LimitCache) Get(ctx context.Context, actorID string) (*domain.ResolvedLimit, bool, error) {
	raw, err := c.rdb.Get(ctx, key(actorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached limit for %s: %w", actorID, err)
	}
	var limit domain.ResolvedLimit
	if err := json.Unmarshal(raw, &limit); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached limit for %s: %w", actorID, err)
	}
	return &limit, true, nil
}

// Set stores limit for actorID.
func (c *LimitCache) Set(ctx context.Context, actorID string, limit domain.ResolvedLimit) error {
	raw, err := json.Marshal(limit)
	if err != nil {
		return fmt.Errorf("failed to encode limit for %s: %w", actorID, err)
	}
	if err := c.rdb.Set(ctx, key(actorID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache limit for %s: %w", actorID, err)
	}
	return nil
}

// InvalidateAll deletes every cached limit. A global limit change affects
// every actor without an override, so entries are dropped wholesale.
func (c *LimitCache) InvalidateAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached limits: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached limits: %w", err)
	}
	return nil
}
