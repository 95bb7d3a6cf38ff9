package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// cacheTTL bounds how long a rendered Page lives in the pagination cache,
// kept well under the s-maxage in CacheControl so a stale cache entry never
// outlives what a client-facing cache is allowed to serve (spec §4.8 step 4).
const cacheTTL = 5 * time.Minute

// PageCache fronts repeated identical GET /data/{query_id} requests (same
// id/limit/offset/sort) with a Redis lookup before re-running the
// warehouse query (spec's domain-stack note that go-redis backs
// "ETag/pagination cache for QueryService").
type PageCache struct {
	client *redis.Client
	logger mlog.Logger
}

// NewPageCache wraps client. A nil client makes every method a no-op, so
// callers that run without Redis configured can still use Service
// unconditionally.
func NewPageCache(client *redis.Client, logger mlog.Logger) *PageCache {
	return &PageCache{client: client, logger: logger}
}

func cacheKey(id string, limit, offset int, sortBy, sortOrder string) string {
	return fmt.Sprintf("nlsql:page:%s:%d:%d:%s:%s", id, limit, offset, sortBy, sortOrder)
}

// Get returns a cached Page and true if present, false otherwise. Any
// Redis error is treated as a cache miss: the cache is a latency
// optimization, not a correctness dependency.
func (c *PageCache) Get(ctx context.Context, id string, limit, offset int, sortBy, sortOrder string) (Page, bool) {
	if c == nil || c.client == nil {
		return Page{}, false
	}

	raw, err := c.client.Get(ctx, cacheKey(id, limit, offset, sortBy, sortOrder)).Bytes()
	if err != nil {
		return Page{}, false
	}

	var page Page

	if err := json.Unmarshal(raw, &page); err != nil {
		c.logger.Warnf("decoding cached page failed: %v", err)
		return Page{}, false
	}

	return page, true
}

// Set stores page, logging (not failing) on error.
func (c *PageCache) Set(ctx context.Context, limit, offset int, sortBy, sortOrder string, page Page) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(page)
	if err != nil {
		c.logger.Warnf("encoding page for cache failed: %v", err)
		return
	}

	key := cacheKey(page.QueryID, limit, offset, sortBy, sortOrder)

	if err := c.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		c.logger.Warnf("caching page failed: %v", err)
	}
}
