// Package cache keeps successful upstream search responses in Redis, keyed by
// the exact keyword, and collapses concurrent identical searches into one
// upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pkgredis "github.com/nyanglife/catshop/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "products:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type ResponseCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "product-cache"),
	}
}

// Get returns the cached body for keyword. Redis failures count as misses.
func (c *ResponseCache) Get(ctx context.Context, keyword string) (json.RawMessage, bool) {
	key := buildKey(keyword)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "keyword", keyword, "key", key)
	return json.RawMessage(data), true
}

func (c *ResponseCache) Set(ctx context.Context, keyword string, body json.RawMessage) {
	key := buildKey(keyword)
	if err := c.store.Set(ctx, key, []byte(body), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrFetch serves keyword from cache or calls fetch once for all concurrent
// callers of the same keyword. Errors are never cached.
//
// The shared fetch runs detached from any one caller's cancellation, so a
// caller that gives up only stops its own wait and never fails the others.
// Its context still carries the first caller's values.
func (c *ResponseCache) GetOrFetch(
	ctx context.Context,
	keyword string,
	fetch func(ctx context.Context) (json.RawMessage, error),
) (json.RawMessage, bool, error) {
	if body, ok := c.Get(ctx, keyword); ok {
		return body, true, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(buildKey(keyword), func() (interface{}, error) {
		body, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Set(fetchCtx, keyword, body)
		return body, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(json.RawMessage), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *ResponseCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating product cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the keyword exactly as sent upstream. Keywords differing
// only in spacing can return different results, so they are not merged.
func buildKey(keyword string) string {
	hash := sha256.Sum256([]byte(keyword))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
