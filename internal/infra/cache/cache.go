package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/evotodo/todo-api/internal/config"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// New returns nil when no address is configured; callers treat a nil client
// as "cache disabled".
func New(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
}

func RegisterOpenTelemetryPlugin(rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	return redisotel.InstrumentTracing(rdb)
}

// JSONCache stores sonic-encoded values under a key prefix. Callers that
// fill entries with read-then-set embed Generation in the key and call Bump
// on invalidation, so a fill racing a mutation lands under a retired key.
type JSONCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewJSONCache(rdb *redis.Client, prefix string, ttl time.Duration) *JSONCache {
	return &JSONCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get reports whether key was present and decoded into dst.
func (c *JSONCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// Generation returns the invalidation counter for key, 0 when never bumped.
func (c *JSONCache) Generation(ctx context.Context, key string) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	n, err := c.rdb.Get(ctx, c.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump retires every entry filled under the current generation of key.
func (c *JSONCache) Bump(ctx context.Context, key string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.genKey(key)).Err()
}

// VersionedKey joins key and its generation.
func VersionedKey(key string, gen int64) string {
	return key + ":" + strconv.FormatInt(gen, 10)
}

func (c *JSONCache) genKey(key string) string {
	return c.prefix + "gen:" + key
}
