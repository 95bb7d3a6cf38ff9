// Package mredis wraps go-redis behind the same Connect/GetClient shape the
// teacher uses for every long-lived external connection.
package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConnection is a hub around a single redis client, used here as the
// ETag/pagination result cache for QueryService and as the optional MCP
// provider variable cache (§4.3).
type RedisConnection struct {
	ConnectionString string
	Client           *redis.Client
	Connected        bool
}

func (rc *RedisConnection) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(rc.ConnectionString)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	rc.Client = client
	rc.Connected = true

	return nil
}

func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if !rc.Connected {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}
