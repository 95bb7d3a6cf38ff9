package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// schemaCacheTTL bounds how long a describe() result is reused before the
// next DBMetaProvider.VarsForSlot call re-queries system.columns.
const schemaCacheTTL = 10 * time.Minute

const schemaCacheKey = "nlsql:mcp:db-meta:schema"

// CachedSchemaCatalog fronts an inner SchemaCatalog with a Redis cache
// (spec's domain-stack note that go-redis also backs the "MCP provider
// result cache", alongside QueryService's pagination cache in
// internal/query). A nil client makes every call pass straight through.
type CachedSchemaCatalog struct {
	inner  SchemaCatalog
	client *redis.Client
	logger mlog.Logger
}

// NewCachedSchemaCatalog wraps inner with a Redis-backed cache.
func NewCachedSchemaCatalog(inner SchemaCatalog, client *redis.Client, logger mlog.Logger) *CachedSchemaCatalog {
	return &CachedSchemaCatalog{inner: inner, client: client, logger: logger}
}

// Describe returns the cached schema if present and fresh, else falls
// through to inner and repopulates the cache.
func (c *CachedSchemaCatalog) Describe(ctx context.Context) ([]TableDescription, error) {
	if c.client == nil {
		return c.inner.Describe(ctx)
	}

	if raw, err := c.client.Get(ctx, schemaCacheKey).Bytes(); err == nil {
		var tables []TableDescription
		if err := json.Unmarshal(raw, &tables); err == nil {
			return tables, nil
		}
	}

	tables, err := c.inner.Describe(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tables); err == nil {
		if err := c.client.Set(ctx, schemaCacheKey, raw, schemaCacheTTL).Err(); err != nil {
			c.logger.Warnf("caching schema describe failed: %v", err)
		}
	}

	return tables, nil
}
