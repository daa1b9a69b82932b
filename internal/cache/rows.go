// Package cache provides a Redis-backed cache of raw metric rows so that
// repeated runs within one reporting session skip refetching from the
// data source.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
	"github.com/ignite/ga4-insight-engine/internal/engine"
)

// RowCache stores fetched row sets keyed by scope request.
type RowCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRowCache creates a row cache with the given entry lifetime.
func NewRowCache(client *redis.Client, ttl time.Duration) *RowCache {
	return &RowCache{client: client, ttl: ttl}
}

// Get returns the cached rows for a request, or ok=false on a miss.
// Cache errors count as misses; the source of truth is the data source.
func (c *RowCache) Get(ctx context.Context, req engine.ScopeRequest) ([]analytics.Row, bool) {
	data, err := c.client.Get(ctx, cacheKey(req)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[RowCache] get failed: %v", err)
		}
		return nil, false
	}
	var rows []analytics.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Printf("[RowCache] corrupt entry dropped: %v", err)
		c.client.Del(ctx, cacheKey(req))
		return nil, false
	}
	return rows, true
}

// Put stores the rows for a request.
func (c *RowCache) Put(ctx context.Context, req engine.ScopeRequest, rows []analytics.Row) {
	data, err := json.Marshal(rows)
	if err != nil {
		log.Printf("[RowCache] marshal failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(req), data, c.ttl).Err(); err != nil {
		log.Printf("[RowCache] set failed: %v", err)
	}
}

func cacheKey(req engine.ScopeRequest) string {
	sum := sha256.Sum256([]byte(strings.Join(req.CacheKeyFields(), "|")))
	return "ga4rows:" + hex.EncodeToString(sum[:16])
}

// CachedSource decorates a RowSource with the row cache. Fetch failures
// are never cached.
type CachedSource struct {
	source engine.RowSource
	cache  *RowCache
}

// NewCachedSource wraps source with cache.
func NewCachedSource(source engine.RowSource, cache *RowCache) *CachedSource {
	return &CachedSource{source: source, cache: cache}
}

func (s *CachedSource) FetchRows(ctx context.Context, req engine.ScopeRequest) ([]analytics.Row, error) {
	if rows, ok := s.cache.Get(ctx, req); ok {
		return rows, nil
	}
	rows, err := s.source.FetchRows(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, req, rows)
	return rows, nil
}
