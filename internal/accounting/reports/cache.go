package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "ledger:reports"
	versionKey = keyPrefix + ":version"
)

// Cache stores report payloads under keys that embed a per-tenant version.
// Bumping the version orphans every key built before it.
type Cache interface {
	BuildKey(ctx context.Context, tenantID int64, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, tenantID int64) error
}

func tenantVersionKey(tenantID int64) string {
	return versionKey + ":" + strconv.FormatInt(tenantID, 10)
}

func composeKey(tenantID, version int64, parts []string) string {
	return fmt.Sprintf("%s:%d:%s:v%d", keyPrefix, tenantID, strings.Join(parts, ":"), version)
}

func roundTrip(value any, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// RedisCache keeps payloads and versions in Redis so every API instance shares
// them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Version returns the tenant's cache version, initialising it when missing.
func (c *RedisCache) Version(ctx context.Context, tenantID int64) (int64, error) {
	key := tenantVersionKey(tenantID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *RedisCache) BuildKey(ctx context.Context, tenantID int64, parts ...string) (string, error) {
	ver, err := c.Version(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return composeKey(tenantID, ver, parts), nil
}

func (c *RedisCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: loader required")
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached report of the tenant.
func (c *RedisCache) Bump(ctx context.Context, tenantID int64) error {
	return c.client.Incr(ctx, tenantVersionKey(tenantID)).Err()
}

// LocalCache is an in-process Cache for single-instance deployments.
type LocalCache struct {
	store *gocache.Cache
	ttl   time.Duration
}

func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{store: gocache.New(ttl, 2*ttl), ttl: ttl}
}

func (c *LocalCache) version(tenantID int64) int64 {
	if v, ok := c.store.Get(tenantVersionKey(tenantID)); ok {
		return v.(int64)
	}
	return 1
}

func (c *LocalCache) BuildKey(_ context.Context, tenantID int64, parts ...string) (string, error) {
	return composeKey(tenantID, c.version(tenantID), parts), nil
}

func (c *LocalCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: loader required")
	}
	if raw, ok := c.store.Get(key); ok {
		return json.Unmarshal(raw.([]byte), dest)
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store.Set(key, raw, c.ttl)
	return json.Unmarshal(raw, dest)
}

func (c *LocalCache) Bump(_ context.Context, tenantID int64) error {
	key := tenantVersionKey(tenantID)
	// Add fails when the version exists, which is fine.
	_ = c.store.Add(key, int64(1), gocache.NoExpiration)
	_, err := c.store.IncrementInt64(key, 1)
	return err
}

// NoCache builds every report on demand.
type NoCache struct{}

func (NoCache) BuildKey(_ context.Context, tenantID int64, parts ...string) (string, error) {
	return composeKey(tenantID, 0, parts), nil
}

func (NoCache) FetchJSON(ctx context.Context, _ string, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	return roundTrip(value, dest)
}

func (NoCache) Bump(context.Context, int64) error { return nil }
