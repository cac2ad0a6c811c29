package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Each view is a hash holding the JSON document under "data" and the version
// it was rendered from under "version" (written by setIfNewerScript).
const viewDataField = "data"

// setIfNewerScript writes the view only when no newer or equal version is
// already cached, so a late writer holding an old record cannot overwrite a
// fresher one.
//
// KEYS[1] view key; ARGV[1] JSON data; ARGV[2] version; ARGV[3] TTL in ms (0 = none)
var setIfNewerScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
else
	redis.call('PERSIST', KEYS[1])
end
return 1
`)

// ViewCache is a generic JSON-backed Redis cache for versioned read model
// projections. Bind it to a specific view type T; each instance holds a Redis
// client and an optional TTL (pass 0 for keys that should not expire).
//
// A ViewCache built on a nil client is disabled: every Get misses and writes
// are dropped.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

func (c *ViewCache[T]) enabled() bool {
	return c != nil && c.client != nil
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if !c.enabled() {
		return nil, false
	}
	data, err := c.client.HGet(ctx, key, viewDataField).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// SetIfNewer stores value under key unless the cache already holds version or
// a later one. It reports whether the value was written.
//
// A failed write is logged and the key is dropped, so readers fall back to
// the store instead of serving the previous version.
func (c *ViewCache[T]) SetIfNewer(ctx context.Context, key string, value *T, version int64) bool {
	if !c.enabled() {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("view cache marshal failed", "key", key, "error", err)
		c.Delete(ctx, key)
		return false
	}
	written, err := setIfNewerScript.Run(ctx, c.client, []string{key},
		string(data), version, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		slog.Warn("view cache write failed", "key", key, "version", version, "error", err)
		c.Delete(ctx, key)
		return false
	}
	return written == 1
}

// Delete removes a key from Redis.
func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("view cache delete failed", "key", key, "error", err)
	}
}
