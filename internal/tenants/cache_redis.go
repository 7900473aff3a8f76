package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"call-assistant/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "tenant:phone:"

// CachedDirectory is a Redis read-through cache in front of another Directory.
//
// Only found profiles are cached. Any Redis failure is logged and the lookup
// falls through to Next, so the cache can slow a turn down but never fail it.
type CachedDirectory struct {
	Next  Directory
	Redis *redis.Client
	TTL   time.Duration
}

func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{Next: next, Redis: rdb, TTL: ttl}
}

func (d *CachedDirectory) LookupByPhone(ctx context.Context, number string) (Profile, bool, error) {
	if d.Redis == nil {
		return d.Next.LookupByPhone(ctx, number)
	}
	log := logger.From(ctx)
	key := cacheKeyPrefix + number

	raw, err := d.Redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Profile
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, true, nil
		}
		log.Warn("tenant cache entry unreadable", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("tenant cache get failed", "err", err)
	}

	p, ok, err := d.Next.LookupByPhone(ctx, number)
	if err != nil || !ok {
		return p, ok, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := d.Redis.Set(ctx, key, b, d.TTL).Err(); err != nil {
			log.Warn("tenant cache set failed", "err", err)
		}
	}
	return p, true, nil
}

