package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// store is the slice of Redis the preview cache needs.  Tests substitute a
// map-backed fake.
type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type redisStore struct {
	rdb *redis.Client
}

func (s redisStore) Get(ctx context.Context, key string) (string, error) {
	return s.rdb.Get(ctx, key).Result()
}

func (s redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s redisStore) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// PreviewCache caches availability previews in Redis with a short TTL.
// Cache failures degrade to recomputation, never to request failure.
type PreviewCache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewPreviewCache builds the preview cache on an established client.
func NewPreviewCache(client *Client, keyPrefix string, ttl time.Duration, log logging.Logger) *PreviewCache {
	return newPreviewCache(redisStore{rdb: client.Redis()}, keyPrefix, ttl, log)
}

func newPreviewCache(s store, keyPrefix string, ttl time.Duration, log logging.Logger) *PreviewCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PreviewCache{store: s, prefix: keyPrefix + "preview:", ttl: ttl, logger: log}
}

// Get returns a cached preview, or false on miss or any cache error.
func (c *PreviewCache) Get(ctx context.Context, key string) (*availability.Preview, bool) {
	raw, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.logger.Warn("preview cache read failed", logging.Err(err))
		}
		return nil, false
	}
	var p availability.Preview
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.logger.Warn("preview cache entry is unreadable", logging.Err(err))
		return nil, false
	}
	return &p, true
}

// Set stores a preview.  Errors are logged and swallowed.
func (c *PreviewCache) Set(ctx context.Context, key string, p *availability.Preview) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("failed to encode preview for cache", logging.Err(err))
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, string(raw), c.ttl); err != nil {
		c.logger.Warn("preview cache write failed", logging.Err(err))
	}
}

// InvalidateTerritory drops every cached preview of the territory across all
// slots, versions, and tenants.
func (c *PreviewCache) InvalidateTerritory(ctx context.Context, territoryID common.ID) {
	pattern := c.prefix + string(territoryID) + ":*"
	if err := c.store.DeleteByPattern(ctx, pattern); err != nil {
		c.logger.Warn("preview cache invalidation failed",
			logging.String("territory_id", string(territoryID)),
			logging.Err(err),
		)
	}
}
