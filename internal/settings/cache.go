package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/redis"
	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/rueidis"
)

// ErrUnknownCacheBackend is returned for a cache backend name that is not supported.
var ErrUnknownCacheBackend = errors.New("unknown settings cache backend")

// NewCache builds the configured cache. Every process using the redis backend
// shares its entries, the memory backend is private to the process.
func NewCache(cfg *config.Cache, redisManager *redis.Manager) (Cache, error) {
	ttl := time.Duration(cfg.TTL) * time.Second

	switch cfg.Backend {
	case "memory":
		return NewMemoryCache(cfg.Size, ttl), nil
	case "redis":
		client, err := redisManager.GetClient(redis.CacheDBIndex)
		if err != nil {
			return nil, err
		}

		return NewRedisCache(client, ttl), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCacheBackend, cfg.Backend)
	}
}

// Cache holds serialized settings keyed by guild. Entries are replaced whole
// and never mutated in place.
type Cache interface {
	Get(ctx context.Context, guildID snowflake.ID) ([]byte, bool, error)
	Set(ctx context.Context, guildID snowflake.ID, data []byte) error
	Delete(ctx context.Context, guildID snowflake.ID) error
}

// MemoryCache is a bounded in-process cache whose entries expire after a fixed TTL.
type MemoryCache struct {
	data *expirable.LRU[snowflake.ID, []byte]
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		data: expirable.NewLRU[snowflake.ID, []byte](size, nil, ttl),
	}
}

func (c *MemoryCache) Get(_ context.Context, guildID snowflake.ID) ([]byte, bool, error) {
	v, ok := c.data.Get(guildID)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, guildID snowflake.ID, data []byte) error {
	c.data.Add(guildID, data)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, guildID snowflake.ID) error {
	c.data.Remove(guildID)
	return nil
}

// RedisCache stores entries in Redis with an expiry, so they are shared
// between bot processes.
type RedisCache struct {
	client rueidis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache backed by the given client.
func NewRedisCache(client rueidis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(guildID snowflake.ID) string {
	return fmt.Sprintf("guild_settings:%d", guildID)
}

func (c *RedisCache) Get(ctx context.Context, guildID snowflake.ID) ([]byte, bool, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(cacheKey(guildID)).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached settings: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, guildID snowflake.ID, data []byte) error {
	cmd := c.client.B().Set().Key(cacheKey(guildID)).Value(rueidis.BinaryString(data)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache settings: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, guildID snowflake.ID) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(cacheKey(guildID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to drop cached settings: %w", err)
	}

	return nil
}
