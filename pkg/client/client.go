// Package client is the connection facade handed to callers once the
// instance manager reports a server ready. It wraps go-redis with the
// small surface most embedders need and exposes the underlying client
// for everything else.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client talks to a single embedded server instance.
type Client struct {
	rdb *redis.Client
}

// Open dials the instance's unix socket.
func Open(socketPath string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Network: "unix",
		Addr:    socketPath,
	})}
}

// OpenAddr dials a TCP address. Intended for instances started with a
// port override, including replication primaries.
func OpenAddr(addr string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Network: "tcp",
		Addr:    addr,
	})}
}

// Unwrap returns the underlying go-redis client for commands not
// covered by the facade.
func (c *Client) Unwrap() *redis.Client { return c.rdb }

// Close releases the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Ping checks the connection end to end.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Set stores a string value. A zero ttl means no expiration.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get fetches a string value. A missing key is an error (redis.Nil).
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Del removes keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Del(ctx, keys...).Result()
}

// Exists reports how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Exists(ctx, keys...).Result()
}

// ServerVersion reports the redis_version field of INFO server.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	v := infoField(info, "redis_version")
	if v == "" {
		return "", fmt.Errorf("redis_version missing from INFO")
	}
	return v, nil
}

// infoField extracts one "name:value" field from an INFO payload.
func infoField(info, name string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if rest, ok := strings.CutPrefix(line, name+":"); ok {
			return rest
		}
	}
	return ""
}
